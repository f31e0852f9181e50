package bytecode

import (
	"fmt"
	"strings"
)

// ConstKind identifies the kind of a loadable constant.
type ConstKind uint8

const (
	ConstInt          ConstKind = 1
	ConstFloat        ConstKind = 2
	ConstLong         ConstKind = 3
	ConstDouble       ConstKind = 4
	ConstString       ConstKind = 5
	ConstClass        ConstKind = 6
	ConstMethodType   ConstKind = 7
	ConstMethodHandle ConstKind = 8
	ConstDynamic      ConstKind = 9 // dynamically computed; Descriptor gives its field type
)

// String returns a human-readable name for ConstKind.
func (k ConstKind) String() string {
	switch k {
	case ConstInt:
		return "int"
	case ConstFloat:
		return "float"
	case ConstLong:
		return "long"
	case ConstDouble:
		return "double"
	case ConstString:
		return "string"
	case ConstClass:
		return "class"
	case ConstMethodType:
		return "methodtype"
	case ConstMethodHandle:
		return "methodhandle"
	case ConstDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("ConstKind(%d)", k)
	}
}

// Constant is a constant pool entry loaded by ldc, ldc_w or ldc2_w.
type Constant struct {
	Kind       ConstKind `cbor:"1,keyasint"`
	Value      string    `cbor:"2,keyasint,omitempty"` // display text only
	Descriptor string    `cbor:"3,keyasint,omitempty"` // ConstDynamic field type
}

// MemberRef is a symbolic field or method reference.
type MemberRef struct {
	Owner      string `cbor:"1,keyasint"` // internal class name or array descriptor
	Name       string `cbor:"2,keyasint"`
	Descriptor string `cbor:"3,keyasint"`
}

func (r *MemberRef) String() string {
	return r.Owner + "." + r.Name + ":" + r.Descriptor
}

// Instruction is a single decoded instruction. Branch targets are not
// carried here; they are expressed as block successors in the Graph.
type Instruction struct {
	Offset    int        `cbor:"1,keyasint"` // bytecode offset, unique within the method
	Op        Opcode     `cbor:"2,keyasint"`
	Local     int        `cbor:"3,keyasint,omitempty"` // explicit local slot
	Increment int        `cbor:"4,keyasint,omitempty"` // iinc delta
	Const     *Constant  `cbor:"5,keyasint,omitempty"`
	Ref       *MemberRef `cbor:"6,keyasint,omitempty"`
	Class     string     `cbor:"7,keyasint,omitempty"` // class name, array descriptor, or newarray element descriptor
	Dims      int        `cbor:"8,keyasint,omitempty"` // multianewarray dimensions
}

// LocalIndex returns the local slot an instruction addresses, resolving the
// implicit slot of the short forms (iload_0 and friends).
func (ins *Instruction) LocalIndex() int {
	if l := ins.Op.Info().Local; l >= 0 {
		return l
	}
	return ins.Local
}

func (ins *Instruction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d: %s", ins.Offset, ins.Op)
	switch {
	case ins.Ref != nil:
		fmt.Fprintf(&b, " %s", ins.Ref)
	case ins.Const != nil:
		fmt.Fprintf(&b, " %s %s", ins.Const.Kind, ins.Const.Value)
	case ins.Class != "":
		fmt.Fprintf(&b, " %s", ins.Class)
		if ins.Dims > 0 {
			fmt.Fprintf(&b, " %d", ins.Dims)
		}
	case ins.Op == OpIinc:
		fmt.Fprintf(&b, " %d %d", ins.Local, ins.Increment)
	case ins.Op.Info().Local < 0 && usesLocal(ins.Op):
		fmt.Fprintf(&b, " %d", ins.Local)
	}
	return b.String()
}

func usesLocal(op Opcode) bool {
	switch op {
	case OpIload, OpLload, OpFload, OpDload, OpAload,
		OpIstore, OpLstore, OpFstore, OpDstore, OpAstore, OpRet:
		return true
	}
	return false
}
