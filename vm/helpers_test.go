package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chazu/clasp/abc"
)

// echoInterpreter answers every bytecode call with the method's name, so
// tests can tell which implementation a dispatch reached.
type echoInterpreter struct {
	calls []string
}

func (e *echoInterpreter) Execute(act *Activation, method *BytecodeMethod, scope ScopeChain, this Value, args []Value, boundClass *ClassObject) (Value, error) {
	e.calls = append(e.calls, method.Name())
	return StringValue(method.Name()), nil
}

func newTestAvm(t *testing.T, opts ...Option) *Avm {
	t.Helper()
	avm, err := NewAvm(opts...)
	require.NoError(t, err)
	return avm
}

func newEchoAvm(t *testing.T) (*Avm, *echoInterpreter) {
	t.Helper()
	interp := &echoInterpreter{}
	return newTestAvm(t, WithInterpreter(interp)), interp
}

func publicName(local string) *Multiname {
	return NewMultiname(PackageNamespace(""), local)
}

// archive is an abc.Builder with shorthands for the public namespace.
type archive struct {
	*abc.Builder
	pub uint32
}

func newArchive() *archive {
	b := abc.NewBuilder()
	return &archive{Builder: b, pub: b.PackageNamespace("")}
}

func (a *archive) name(local string) uint32 {
	return a.QName(a.pub, local)
}

func (a *archive) method(name string) uint32 {
	return a.Method(name, nil, 0, 0)
}

// class declares a public class extending super ("" for none).
func (a *archive) class(name, super string, instanceTraits ...abc.Trait) uint32 {
	inst := abc.Instance{
		Name:       a.name(name),
		InitMethod: a.method(name + "/init"),
		Traits:     instanceTraits,
	}
	if super != "" {
		inst.SuperName = a.name(super)
	}
	return a.Class(inst, abc.Class{InitMethod: a.method(name + "/cinit")})
}

func linkClass(t *testing.T, act *Activation, class *Class, super *ClassObject, domain *Domain) *ClassObject {
	t.Helper()
	co, err := NewClassObject(act, class, super, NewScopeChain(domain))
	require.NoError(t, err)
	return co
}
