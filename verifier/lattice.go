package verifier

import (
	"errors"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/chazu/bcverify/bytecode"
	"github.com/chazu/bcverify/hierarchy"
)

// MethodType is a parsed method descriptor in verification types.
type MethodType struct {
	Params []Type
	Return Type
}

type lookupResult struct {
	class *hierarchy.Class
	err   error
}

type chainResult struct {
	names []string
	err   error
}

type mergeKey struct{ a, b Type }

// TypeTable owns every per-run cache of a verification: descriptor parses,
// class lookups, superclass chains and merge results. One table belongs to
// one verifier run and is never shared.
type TypeTable struct {
	classes hierarchy.Resolver
	log     commonlog.Logger

	fields  map[string]Type
	methods map[string]*MethodType
	lookups map[string]lookupResult
	chains  map[string]chainResult
	merges  map[mergeKey]Type
	missing map[string]bool
}

// NewTypeTable creates a table resolving classes through classes. A nil
// resolver behaves like one that knows only the core library classes.
func NewTypeTable(classes hierarchy.Resolver, log commonlog.Logger) *TypeTable {
	if classes == nil {
		classes = hierarchy.NewRegistry()
	}
	if log == nil {
		log = commonlog.GetLogger("bcverify.verifier")
	}
	return &TypeTable{
		classes: classes,
		log:     log,
		fields:  make(map[string]Type),
		methods: make(map[string]*MethodType),
		lookups: make(map[string]lookupResult),
		chains:  make(map[string]chainResult),
		merges:  make(map[mergeKey]Type),
		missing: make(map[string]bool),
	}
}

// Field returns the value type of a field descriptor.
func (tt *TypeTable) Field(desc string) (Type, error) {
	if t, ok := tt.fields[desc]; ok {
		return t, nil
	}
	if err := bytecode.ValidateFieldDescriptor(desc); err != nil {
		return Invalid, err
	}
	t := descriptorType(desc)
	tt.fields[desc] = t
	return t, nil
}

// Method returns the parameter and return types of a method descriptor.
func (tt *TypeTable) Method(desc string) (*MethodType, error) {
	if mt, ok := tt.methods[desc]; ok {
		return mt, nil
	}
	md, err := bytecode.ParseMethodDescriptor(desc)
	if err != nil {
		return nil, err
	}
	mt := &MethodType{Params: make([]Type, len(md.Params)), Return: descriptorType(md.Return)}
	for i, p := range md.Params {
		mt.Params[i] = descriptorType(p)
	}
	tt.methods[desc] = mt
	return mt, nil
}

// ---------------------------------------------------------------------------
// Hierarchy access (cached, fail-open)
// ---------------------------------------------------------------------------

func (tt *TypeTable) lookup(name string) (*hierarchy.Class, error) {
	if r, ok := tt.lookups[name]; ok {
		return r.class, r.err
	}
	c, err := tt.classes.Lookup(name)
	tt.lookups[name] = lookupResult{c, err}
	return c, err
}

func (tt *TypeTable) chain(name string) ([]string, error) {
	if r, ok := tt.chains[name]; ok {
		return r.names, r.err
	}
	names, err := hierarchy.Superclasses(lookupFunc(tt.lookup), name)
	tt.chains[name] = chainResult{names, err}
	return names, err
}

func (tt *TypeTable) superclassOf(name string) (string, error) {
	c, err := tt.lookup(name)
	if err != nil {
		return "", err
	}
	return c.Super, nil
}

func (tt *TypeTable) isInterface(name string) (bool, error) {
	c, err := tt.lookup(name)
	if err != nil {
		return false, err
	}
	return c.Interface, nil
}

// failOpen records incomplete hierarchy data. The caller then assumes the
// answer that accepts the code.
func (tt *TypeTable) failOpen(name string, err error) {
	if tt.missing[name] {
		return
	}
	tt.missing[name] = true
	tt.log.Warningf("incomplete class hierarchy for %s, assuming compatible: %v", name, err)
}

// Missing returns the classes whose metadata could not be loaded, sorted.
func (tt *TypeTable) Missing() []string {
	if len(tt.missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(tt.missing))
	for n := range tt.missing {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type lookupFunc func(string) (*hierarchy.Class, error)

func (f lookupFunc) Lookup(name string) (*hierarchy.Class, error) { return f(name) }

// ---------------------------------------------------------------------------
// Subtyping
// ---------------------------------------------------------------------------

// IsSubtypeOf reports whether a value of type t may be used where target is
// required.
func (tt *TypeTable) IsSubtypeOf(t, target Type) bool {
	if t == target {
		return true
	}
	switch target.kind {
	case KindAnyReference:
		return t.IsReference()
	case KindAnyArray:
		return t.kind == KindArray || t.kind == KindNull
	case KindObject:
		switch t.kind {
		case KindNull:
			return true
		case KindObject:
			return tt.classAssignable(t.class, target.class)
		case KindArray:
			return tt.arrayToClass(target.class)
		}
	case KindArray:
		switch t.kind {
		case KindNull:
			return true
		case KindArray:
			if t.hasReferenceElems() && target.hasReferenceElems() {
				return tt.IsSubtypeOf(t.Elem(), target.Elem())
			}
			// Primitive element arrays match only exactly; [Z is not [B.
			return false
		}
	case KindUninitThis:
		if t.kind != KindUninitThis {
			return false
		}
		super, err := tt.superclassOf(t.class)
		if err != nil {
			tt.failOpen(t.class, err)
			return true
		}
		return super == target.class
	}
	return false
}

// classAssignable decides object-to-class compatibility. Interfaces accept
// any reference, as the bytecode verifier cannot track interface types
// through merges.
func (tt *TypeTable) classAssignable(from, to string) bool {
	if to == hierarchy.ObjectClass || from == to {
		return true
	}
	iface, err := tt.isInterface(to)
	if err != nil {
		tt.failOpen(to, err)
		return true
	}
	if iface {
		return true
	}
	chain, err := tt.chain(from)
	for _, n := range chain {
		if n == to {
			return true
		}
	}
	if err != nil {
		tt.failOpen(from, err)
		return true
	}
	return false
}

// arrayToClass reports whether arrays are assignable to the named class:
// Object and every interface (Cloneable and Serializable in practice).
func (tt *TypeTable) arrayToClass(to string) bool {
	if to == hierarchy.ObjectClass {
		return true
	}
	iface, err := tt.isInterface(to)
	if err != nil {
		tt.failOpen(to, err)
		return true
	}
	return iface
}

// ---------------------------------------------------------------------------
// Merge
// ---------------------------------------------------------------------------

// Merge returns the least upper bound of a and b, or Invalid when they
// have none.
func (tt *TypeTable) Merge(a, b Type) Type {
	if a == b {
		return a
	}
	if a.kind == KindNull && b.IsReference() {
		return b
	}
	if b.kind == KindNull && a.IsReference() {
		return a
	}
	if !isClassOrArray(a) || !isClassOrArray(b) {
		return Invalid
	}
	key := mergeKey{a, b}
	if b.String() < a.String() {
		key = mergeKey{b, a}
	}
	if m, ok := tt.merges[key]; ok {
		return m
	}
	m := tt.mergeReferences(a, b)
	tt.merges[key] = m
	return m
}

func isClassOrArray(t Type) bool {
	return t.kind == KindObject || t.kind == KindArray
}

func (tt *TypeTable) mergeReferences(a, b Type) Type {
	switch {
	case a.kind == KindArray && b.kind == KindArray:
		if a.hasReferenceElems() && b.hasReferenceElems() {
			return ArrayOf(tt.Merge(a.Elem(), b.Elem()))
		}
		return objectType
	case a.kind == KindObject && b.kind == KindObject:
		return tt.commonSuperclass(a.class, b.class)
	}
	return objectType
}

// commonSuperclass walks b's superclass chain until it meets a's.
func (tt *TypeTable) commonSuperclass(a, b string) Type {
	ca, errA := tt.chain(a)
	cb, errB := tt.chain(b)
	inA := make(map[string]bool, len(ca))
	for _, n := range ca {
		inA[n] = true
	}
	for _, n := range cb {
		if inA[n] {
			return ObjectType(n)
		}
	}
	if errA != nil {
		tt.failOpen(a, errA)
	}
	if errB != nil {
		tt.failOpen(b, errB)
	}
	switch {
	case errA != nil && errB == nil:
		return ObjectType(b)
	case errB != nil && errA == nil:
		return ObjectType(a)
	}
	return objectType
}

// fieldOwner returns the class declaring the named field, falling back to
// the symbolic owner when the hierarchy cannot answer.
func (tt *TypeTable) fieldOwner(owner, name, desc string) string {
	if owner == "" || owner[0] == '[' {
		return owner
	}
	c, _, err := hierarchy.FindField(lookupFunc(tt.lookup), owner, name, desc)
	if err != nil {
		tt.memberMiss(owner, err)
		return owner
	}
	return c.Name
}

// methodStatic reports whether the referenced method is static. ok is false
// when the method cannot be resolved.
func (tt *TypeTable) methodStatic(owner, name, desc string) (static, ok bool) {
	if owner == "" || owner[0] == '[' {
		return false, false
	}
	_, m, err := hierarchy.FindMethod(lookupFunc(tt.lookup), owner, name, desc)
	if err != nil {
		tt.memberMiss(owner, err)
		return false, false
	}
	return m.Static, true
}

// memberMiss reports a failed member resolution. Classes often omit member
// tables, so an unknown member of a known class is only a debug message.
func (tt *TypeTable) memberMiss(owner string, err error) {
	if errors.Is(err, hierarchy.ErrMemberNotFound) {
		tt.log.Debugf("%v", err)
		return
	}
	tt.failOpen(owner, err)
}
