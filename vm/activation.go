package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// Activation is the execution context handed to loaders and natives: the
// Avm and the domain code is currently running in.
type Activation struct {
	avm    *Avm
	domain *Domain
}

// NewActivation returns an activation running in avm's global domain.
func NewActivation(avm *Avm) *Activation {
	return &Activation{avm: avm, domain: avm.GlobalDomain()}
}

// NewActivationInDomain returns an activation running in domain.
func NewActivationInDomain(avm *Avm, domain *Domain) *Activation {
	return &Activation{avm: avm, domain: domain}
}

// Avm returns the VM.
func (act *Activation) Avm() *Avm { return act.avm }

// Domain returns the current domain.
func (act *Activation) Domain() *Domain { return act.domain }

// Logger returns the VM logger.
func (act *Activation) Logger() commonlog.Logger { return act.avm.Logger() }

// CallMethod invokes method. Native methods run directly; bytecode methods
// go through the installed Interpreter. Missing optional arguments are
// filled from the declared defaults.
func (act *Activation) CallMethod(method *Method, scope ScopeChain, this Value, args []Value, boundClass *ClassObject) (Value, error) {
	args = withDefaultArgs(method, args)

	if impl := method.Native(); impl != nil {
		return impl(act, this, args)
	}

	interp := act.avm.Interpreter()
	if interp == nil {
		return Undefined, fmt.Errorf("%w: cannot run %s", ErrNoInterpreter, method)
	}
	return interp.Execute(act, method.Bytecode(), scope, this, args, boundClass)
}

func withDefaultArgs(method *Method, args []Value) []Value {
	sig := method.Signature()
	if len(args) >= len(sig) {
		return args
	}
	filled := args
	for _, param := range sig[len(args):] {
		if param.Default == nil {
			break
		}
		if len(filled) == len(args) {
			filled = append([]Value(nil), args...)
		}
		filled = append(filled, *param.Default)
	}
	return filled
}
