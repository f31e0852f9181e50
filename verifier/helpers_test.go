package verifier

import (
	"errors"
	"testing"

	"github.com/tliron/commonlog"

	"github.com/chazu/bcverify/bytecode"
	"github.com/chazu/bcverify/hierarchy"
)

// ---------------------------------------------------------------------------
// Test hierarchy
//
//	java/lang/Object
//	  app/Base implements app/Named
//	    app/Circle
//	    app/Square
//	  app/Orphan extends app/Missing (not loadable)
//	app/Shape, app/Named extends app/Shape: interfaces
// ---------------------------------------------------------------------------

func testClasses() *hierarchy.Registry {
	r := hierarchy.NewRegistry()
	r.AddAll(
		&hierarchy.Class{Name: "app/Shape", Super: hierarchy.ObjectClass, Interface: true},
		&hierarchy.Class{Name: "app/Named", Super: hierarchy.ObjectClass, Interface: true, Interfaces: []string{"app/Shape"}},
		&hierarchy.Class{
			Name: "app/Base", Super: hierarchy.ObjectClass, Interfaces: []string{"app/Named"},
			Fields:  []hierarchy.Member{{Name: "id", Descriptor: "I"}},
			Methods: []hierarchy.Member{{Name: "make", Descriptor: "()Lapp/Base;", Static: true}},
		},
		&hierarchy.Class{
			Name: "app/Circle", Super: "app/Base",
			Methods: []hierarchy.Member{{Name: "area", Descriptor: "()D"}},
		},
		&hierarchy.Class{Name: "app/Square", Super: "app/Base"},
		&hierarchy.Class{Name: "app/Orphan", Super: "app/Missing"},
	)
	return r
}

func testTable() *TypeTable {
	return NewTypeTable(testClasses(), commonlog.MOCK_LOGGER)
}

var (
	tCircle = ObjectType("app/Circle")
	tSquare = ObjectType("app/Square")
	tBase   = ObjectType("app/Base")
	tShape  = ObjectType("app/Shape")
	tNamed  = ObjectType("app/Named")
	tString = ObjectType(hierarchy.StringClass)
	tOrphan = ObjectType("app/Orphan")
)

// ---------------------------------------------------------------------------
// Method builders
// ---------------------------------------------------------------------------

func op(o bytecode.Opcode) bytecode.Instruction {
	return bytecode.Instruction{Op: o}
}

func loc(o bytecode.Opcode, i int) bytecode.Instruction {
	return bytecode.Instruction{Op: o, Local: i}
}

func member(o bytecode.Opcode, owner, name, desc string) bytecode.Instruction {
	return bytecode.Instruction{Op: o, Ref: &bytecode.MemberRef{Owner: owner, Name: name, Descriptor: desc}}
}

func class(o bytecode.Opcode, name string) bytecode.Instruction {
	return bytecode.Instruction{Op: o, Class: name}
}

func constant(o bytecode.Opcode, kind bytecode.ConstKind, desc string) bytecode.Instruction {
	return bytecode.Instruction{Op: o, Const: &bytecode.Constant{Kind: kind, Descriptor: desc}}
}

func block(succ []int, ins ...bytecode.Instruction) *bytecode.Block {
	b := &bytecode.Block{Instructions: ins}
	for _, s := range succ {
		b.Successors = append(b.Successors, bytecode.BlockID(s))
	}
	return b
}

func to(ids ...int) []int { return ids }

// method numbers blocks and assigns sequential instruction offsets.
func method(class, name, desc string, static bool, maxStack, maxLocals int, blocks ...*bytecode.Block) *bytecode.Method {
	off := 0
	for i, b := range blocks {
		b.ID = bytecode.BlockID(i)
		for j := range b.Instructions {
			b.Instructions[j].Offset = off
			off++
		}
	}
	return &bytecode.Method{
		Class:      class,
		Name:       name,
		Descriptor: desc,
		Static:     static,
		MaxStack:   maxStack,
		MaxLocals:  maxLocals,
		Code:       &bytecode.Graph{Blocks: blocks},
	}
}

func staticMethod(desc string, maxStack, maxLocals int, blocks ...*bytecode.Block) *bytecode.Method {
	return method("app/Test", "test", desc, true, maxStack, maxLocals, blocks...)
}

func run(m *bytecode.Method) (*Verifier, error) {
	v := New(m, testClasses())
	v.SetLogger(commonlog.MOCK_LOGGER)
	return v, v.Verify()
}

func wantOK(t *testing.T, m *bytecode.Method) *Verifier {
	t.Helper()
	v, err := run(m)
	if err != nil {
		t.Fatalf("Verify() = %v, want nil", err)
	}
	return v
}

func wantErr(t *testing.T, m *bytecode.Method, kind error) *VerifyError {
	t.Helper()
	_, err := run(m)
	if err == nil {
		t.Fatalf("Verify() = nil, want %v", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("Verify() = %v, want %v", err, kind)
	}
	var ve *VerifyError
	if !errors.As(err, &ve) {
		t.Fatalf("Verify() returned %T, want *VerifyError", err)
	}
	return ve
}
