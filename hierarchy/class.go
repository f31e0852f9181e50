// Package hierarchy supplies class metadata to the verifier: superclass
// chains, interface flags, and field/method lookup.
package hierarchy

import (
	"errors"
	"fmt"
)

// Well-known class names.
const (
	ObjectClass       = "java/lang/Object"
	ThrowableClass    = "java/lang/Throwable"
	StringClass       = "java/lang/String"
	ClassClass        = "java/lang/Class"
	CloneableClass    = "java/lang/Cloneable"
	SerializableClass = "java/io/Serializable"
	MethodTypeClass   = "java/lang/invoke/MethodType"
	MethodHandleClass = "java/lang/invoke/MethodHandle"
)

// ErrClassNotFound is returned when a class is missing from the classpath.
var ErrClassNotFound = errors.New("class not found")

// ErrMemberNotFound is returned when field or method resolution fails.
var ErrMemberNotFound = errors.New("member not found")

// Member is a field or method declared by a class.
type Member struct {
	Name       string `toml:"name"`
	Descriptor string `toml:"descriptor"`
	Static     bool   `toml:"static"`
}

// Class is the metadata the verifier needs about one class or interface.
type Class struct {
	Name       string   `toml:"name"`
	Super      string   `toml:"super"` // empty only for java/lang/Object
	Interfaces []string `toml:"interfaces"`
	Interface  bool     `toml:"interface"`
	Fields     []Member `toml:"field"`
	Methods    []Member `toml:"method"`
}

// Field returns the field declared directly by c, or nil.
func (c *Class) Field(name, desc string) *Member {
	for i := range c.Fields {
		if c.Fields[i].Name == name && c.Fields[i].Descriptor == desc {
			return &c.Fields[i]
		}
	}
	return nil
}

// Method returns the method declared directly by c, or nil.
func (c *Class) Method(name, desc string) *Member {
	for i := range c.Methods {
		if c.Methods[i].Name == name && c.Methods[i].Descriptor == desc {
			return &c.Methods[i]
		}
	}
	return nil
}

// Resolver looks classes up by internal name. Implementations return an
// error wrapping ErrClassNotFound for unknown classes.
type Resolver interface {
	Lookup(name string) (*Class, error)
}

// Chain consults each resolver in turn and returns the first hit.
type Chain []Resolver

// Lookup implements Resolver.
func (c Chain) Lookup(name string) (*Class, error) {
	for _, r := range c {
		cls, err := r.Lookup(name)
		if err == nil {
			return cls, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Superclasses returns the chain from name up to java/lang/Object, starting
// with name itself. On a lookup failure the partial chain gathered so far is
// returned together with the error.
func Superclasses(r Resolver, name string) ([]string, error) {
	var chain []string
	seen := make(map[string]bool)
	for current := name; current != ""; {
		if seen[current] {
			return chain, fmt.Errorf("circular superclass chain at %s", current)
		}
		seen[current] = true
		chain = append(chain, current)
		cls, err := r.Lookup(current)
		if err != nil {
			return chain, err
		}
		current = cls.Super
	}
	return chain, nil
}

// IsSuperclassOf reports whether a is b or one of b's superclasses.
func IsSuperclassOf(r Resolver, a, b string) (bool, error) {
	chain, err := Superclasses(r, b)
	for _, n := range chain {
		if n == a {
			return true, nil
		}
	}
	return false, err
}

// IsInterface reports whether name is an interface.
func IsInterface(r Resolver, name string) (bool, error) {
	cls, err := r.Lookup(name)
	if err != nil {
		return false, err
	}
	return cls.Interface, nil
}

// Implements reports whether class name implements iface, directly or
// through a superclass or superinterface.
func Implements(r Resolver, name, iface string) (bool, error) {
	chain, err := Superclasses(r, name)
	if err != nil {
		return false, err
	}
	seen := make(map[string]bool)
	pending := append([]string(nil), chain...)
	for len(pending) > 0 {
		n := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		cls, err := r.Lookup(n)
		if err != nil {
			return false, err
		}
		for _, i := range cls.Interfaces {
			if i == iface {
				return true, nil
			}
			pending = append(pending, i)
		}
	}
	return false, nil
}

// FindField resolves a field reference the way the JVM does: the class
// itself, then its superinterfaces, then its superclass. It returns the
// declaring class and the member.
func FindField(r Resolver, owner, name, desc string) (*Class, *Member, error) {
	seen := make(map[string]bool)
	var find func(string) (*Class, *Member, error)
	find = func(cn string) (*Class, *Member, error) {
		if cn == "" || seen[cn] {
			return nil, nil, nil
		}
		seen[cn] = true
		cls, err := r.Lookup(cn)
		if err != nil {
			return nil, nil, err
		}
		if m := cls.Field(name, desc); m != nil {
			return cls, m, nil
		}
		for _, i := range cls.Interfaces {
			if c, m, err := find(i); err != nil || m != nil {
				return c, m, err
			}
		}
		return find(cls.Super)
	}
	cls, m, err := find(owner)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, fmt.Errorf("%w: field %s.%s:%s", ErrMemberNotFound, owner, name, desc)
	}
	return cls, m, nil
}

// FindMethod resolves a method reference: the superclass chain first, then
// superinterfaces.
func FindMethod(r Resolver, owner, name, desc string) (*Class, *Member, error) {
	chain, err := Superclasses(r, owner)
	if err != nil {
		return nil, nil, err
	}
	var ifaces []string
	for _, cn := range chain {
		cls, err := r.Lookup(cn)
		if err != nil {
			return nil, nil, err
		}
		if m := cls.Method(name, desc); m != nil {
			return cls, m, nil
		}
		ifaces = append(ifaces, cls.Interfaces...)
	}
	seen := make(map[string]bool)
	for len(ifaces) > 0 {
		cn := ifaces[0]
		ifaces = ifaces[1:]
		if seen[cn] {
			continue
		}
		seen[cn] = true
		cls, err := r.Lookup(cn)
		if err != nil {
			return nil, nil, err
		}
		if m := cls.Method(name, desc); m != nil {
			return cls, m, nil
		}
		ifaces = append(ifaces, cls.Interfaces...)
	}
	return nil, nil, fmt.Errorf("%w: method %s.%s%s", ErrMemberNotFound, owner, name, desc)
}
