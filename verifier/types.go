package verifier

import (
	"fmt"
	"strings"

	"github.com/chazu/bcverify/bytecode"
	"github.com/chazu/bcverify/hierarchy"
)

// ---------------------------------------------------------------------------
// Kind and Type
// ---------------------------------------------------------------------------

// Kind tags a verification type.
type Kind uint8

const (
	KindInvalid       Kind = iota // bottom: unusable value
	KindInt                       // boolean, byte, char, short and int
	KindFloat                     //
	KindLong                      // lower half of a two-slot value
	KindDouble                    // lower half of a two-slot value
	KindVoid                      // method return only
	KindSecondWord                // upper half of a long or double
	KindNull                      // the null reference
	KindObject                    // initialized instance of a class
	KindArray                     // array; class holds the full descriptor
	KindUninitThis                // constructor receiver before the super call
	KindUninitNew                 // result of new before its constructor runs
	KindReturnAddress             // jsr return address
	KindAnyReference              // wildcard: any object, array or null
	KindAnyArray                  // wildcard: any array or null
)

var kindNames = [...]string{
	KindInvalid:       "invalid",
	KindInt:           "int",
	KindFloat:         "float",
	KindLong:          "long",
	KindDouble:        "double",
	KindVoid:          "void",
	KindSecondWord:    "second-word",
	KindNull:          "null",
	KindObject:        "object",
	KindArray:         "array",
	KindUninitThis:    "uninit-this",
	KindUninitNew:     "uninit-new",
	KindReturnAddress: "return-address",
	KindAnyReference:  "any-reference",
	KindAnyArray:      "any-array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Type is an immutable verification type. Types are small comparable
// values: two types are equal exactly when kind, class and site match, so
// == is the lattice equality.
type Type struct {
	kind  Kind
	class string // internal class name; full descriptor for arrays
	site  int    // allocation offset (uninit-new) or subroutine block (return-address)
}

// Singleton types.
var (
	Invalid      = Type{kind: KindInvalid}
	Int          = Type{kind: KindInt}
	Float        = Type{kind: KindFloat}
	Long         = Type{kind: KindLong}
	Double       = Type{kind: KindDouble}
	Void         = Type{kind: KindVoid}
	SecondWord   = Type{kind: KindSecondWord}
	Null         = Type{kind: KindNull}
	AnyReference = Type{kind: KindAnyReference}
	AnyArray     = Type{kind: KindAnyArray}
)

// ObjectType returns the initialized type of the named class.
func ObjectType(class string) Type {
	if class == "" || strings.HasPrefix(class, "[") {
		panic(fmt.Sprintf("verifier: bad class name %q", class))
	}
	return Type{kind: KindObject, class: class}
}

// UninitThis returns the uninitialized receiver type of a constructor of class.
func UninitThis(class string) Type {
	if class == "" {
		panic("verifier: uninit-this without class")
	}
	return Type{kind: KindUninitThis, class: class}
}

// UninitNew returns the uninitialized type produced by the new instruction
// at the given offset.
func UninitNew(class string, offset int) Type {
	if class == "" {
		panic("verifier: uninit-new without class")
	}
	return Type{kind: KindUninitNew, class: class, site: offset}
}

// ReturnAddress returns the return-address type of the subroutine entered
// at block target.
func ReturnAddress(target bytecode.BlockID) Type {
	return Type{kind: KindReturnAddress, site: int(target)}
}

// arrayType returns the array type for a full array descriptor.
func arrayType(desc string) Type {
	if !strings.HasPrefix(desc, "[") {
		panic(fmt.Sprintf("verifier: bad array descriptor %q", desc))
	}
	return Type{kind: KindArray, class: desc}
}

// ArrayOf returns the array type whose elements are elem. The element must
// be a reference type; primitive arrays come from descriptors.
func ArrayOf(elem Type) Type {
	switch elem.kind {
	case KindObject:
		return arrayType("[L" + elem.class + ";")
	case KindArray:
		return arrayType("[" + elem.class)
	}
	panic(fmt.Sprintf("verifier: no array of %s", elem))
}

// Kind returns the type's tag.
func (t Type) Kind() Kind { return t.kind }

// Class returns the class name for object and uninitialized types and the
// descriptor for arrays.
func (t Type) Class() string { return t.class }

// Target returns the subroutine entry block of a return-address type.
func (t Type) Target() bytecode.BlockID { return bytecode.BlockID(t.site) }

// IsWide reports whether the type is the lower half of a two-slot value.
func (t Type) IsWide() bool { return t.kind == KindLong || t.kind == KindDouble }

// IsReference reports whether the type is an initialized reference: an
// object, an array or null.
func (t Type) IsReference() bool {
	return t.kind == KindObject || t.kind == KindArray || t.kind == KindNull
}

// IsUninitialized reports whether the type is an uninit-this or uninit-new.
func (t Type) IsUninitialized() bool {
	return t.kind == KindUninitThis || t.kind == KindUninitNew
}

// ElemDescriptor returns the descriptor of an array type's elements.
func (t Type) ElemDescriptor() string {
	if t.kind != KindArray {
		return ""
	}
	return t.class[1:]
}

// Elem returns the value type of an array's elements.
func (t Type) Elem() Type {
	if t.kind != KindArray {
		return Invalid
	}
	return descriptorType(t.class[1:])
}

// Dimensions returns the number of array dimensions.
func (t Type) Dimensions() int {
	if t.kind != KindArray {
		return 0
	}
	return len(t.class) - len(strings.TrimLeft(t.class, "["))
}

// hasReferenceElems reports whether an array holds references.
func (t Type) hasReferenceElems() bool {
	if t.kind != KindArray {
		return false
	}
	c := t.class[1]
	return c == 'L' || c == '['
}

func (t Type) String() string {
	switch t.kind {
	case KindObject:
		return t.class
	case KindArray:
		return t.class
	case KindUninitThis:
		return "uninit(this " + t.class + ")"
	case KindUninitNew:
		return fmt.Sprintf("uninit(%s@%d)", t.class, t.site)
	case KindReturnAddress:
		return "retaddr(" + t.Target().String() + ")"
	}
	return t.kind.String()
}

// descriptorType converts a field descriptor to its value type without
// validation. Callers validate descriptors first.
func descriptorType(desc string) Type {
	if desc == "" {
		return Invalid
	}
	switch desc[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		return Int
	case 'F':
		return Float
	case 'J':
		return Long
	case 'D':
		return Double
	case 'V':
		return Void
	case 'L':
		return ObjectType(desc[1 : len(desc)-1])
	case '[':
		return arrayType(desc)
	}
	return Invalid
}

// classRefType converts the operand of new, anewarray, checkcast and
// friends, which is either an internal class name or an array descriptor.
func classRefType(name string) Type {
	if strings.HasPrefix(name, "[") {
		return arrayType(name)
	}
	return ObjectType(name)
}

var objectType = Type{kind: KindObject, class: hierarchy.ObjectClass}
var throwableType = Type{kind: KindObject, class: hierarchy.ThrowableClass}
