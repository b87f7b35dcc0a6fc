package vm

// Domain is a namespace of exported definitions. Lookups consult the parent
// domain first, so definitions in a parent cannot be shadowed.
type Domain struct {
	cell *Cell[domainData]
}

type domainData struct {
	parent  *Domain
	defs    *PropertyMap[*Script]
	classes *PropertyMap[*Class]
}

// NewDomain creates a domain. A nil parent creates a root domain.
func NewDomain(parent *Domain) *Domain {
	return &Domain{cell: NewCell(domainData{
		parent:  parent,
		defs:    NewPropertyMap[*Script](),
		classes: NewPropertyMap[*Class](),
	})}
}

// Parent returns the parent domain, or nil.
func (d *Domain) Parent() *Domain {
	data, release := d.cell.Read()
	defer release()
	return data.parent
}

// IsGlobal reports whether d is avm's built-in global domain.
func (d *Domain) IsGlobal(avm *Avm) bool {
	return d == avm.GlobalDomain()
}

// ExportDefinition records that script defines name.
func (d *Domain) ExportDefinition(name QName, script *Script) {
	data, release := d.cell.Write()
	defer release()
	data.defs.Insert(name, script)
}

// ExportClass makes class resolvable by its name.
func (d *Domain) ExportClass(class *Class) {
	name := class.Name()
	data, release := d.cell.Write()
	defer release()
	data.classes.Insert(name, class)
}

// GetDefiningScript finds the script that exports name.
func (d *Domain) GetDefiningScript(name *Multiname) (*Script, QName, bool) {
	data, release := d.cell.Read()
	parent := data.parent
	release()

	if parent != nil {
		if s, q, ok := parent.GetDefiningScript(name); ok {
			return s, q, true
		}
	}

	data, release = d.cell.Read()
	defer release()
	ns, script, ok := data.defs.GetWithNsForMultiname(name)
	if !ok {
		return nil, QName{}, false
	}
	local, _ := name.LocalName()
	return script, NewQName(ns, local), true
}

// GetClass finds an exported class by name.
func (d *Domain) GetClass(name *Multiname) (*Class, bool) {
	data, release := d.cell.Read()
	parent := data.parent
	release()

	if parent != nil {
		if c, ok := parent.GetClass(name); ok {
			return c, true
		}
	}

	data, release = d.cell.Read()
	defer release()
	return data.classes.GetForMultiname(name)
}

// HasDefinition reports whether name is exported by d or a parent.
func (d *Domain) HasDefinition(name *Multiname) bool {
	_, _, ok := d.GetDefiningScript(name)
	return ok
}

// Classes returns the classes exported directly by d, ordered by name.
func (d *Domain) Classes() []*Class {
	data, release := d.cell.Read()
	defer release()
	var out []*Class
	for _, c := range data.classes.All() {
		out = append(out, c)
	}
	return out
}
