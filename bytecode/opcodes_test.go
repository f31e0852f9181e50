package bytecode

import (
	"strings"
	"testing"
)

func TestOpcodeInfo(t *testing.T) {
	tests := []struct {
		op    Opcode
		name  string
		local int
		flow  Flow
	}{
		{OpNop, "nop", -1, FlowNext},
		{OpIload, "iload", -1, FlowNext},
		{OpIload2, "iload_2", 2, FlowNext},
		{OpAstore3, "astore_3", 3, FlowNext},
		{OpDload0, "dload_0", 0, FlowNext},
		{OpIfeq, "ifeq", -1, FlowBranch},
		{OpIfnonnull, "ifnonnull", -1, FlowBranch},
		{OpGoto, "goto", -1, FlowGoto},
		{OpGotoW, "goto_w", -1, FlowGoto},
		{OpJsr, "jsr", -1, FlowJsr},
		{OpJsrW, "jsr_w", -1, FlowJsr},
		{OpRet, "ret", -1, FlowRet},
		{OpLookupswitch, "lookupswitch", -1, FlowSwitch},
		{OpAreturn, "areturn", -1, FlowReturn},
		{OpAthrow, "athrow", -1, FlowThrow},
		{OpInvokedynamic, "invokedynamic", -1, FlowNext},
	}

	for _, tt := range tests {
		info := tt.op.Info()
		if info.Name != tt.name {
			t.Errorf("%#x: Name = %q, want %q", byte(tt.op), info.Name, tt.name)
		}
		if info.Local != tt.local {
			t.Errorf("%s: Local = %d, want %d", tt.op, info.Local, tt.local)
		}
		if info.Flow != tt.flow {
			t.Errorf("%s: Flow = %s, want %s", tt.op, info.Flow, tt.flow)
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	op := Opcode(0xCB)
	if op.IsDefined() {
		t.Fatalf("%#x should be undefined", byte(op))
	}
	if !strings.HasPrefix(op.String(), "UNKNOWN_") {
		t.Errorf("unknown opcode should have UNKNOWN_ prefix, got %q", op.String())
	}
}

func TestOpcodesSorted(t *testing.T) {
	ops := Opcodes()
	// 0x00-0xC9 plus breakpoint, impdep1 and impdep2.
	if len(ops) != 0xCA+3 {
		t.Errorf("len(Opcodes()) = %d, want %d", len(ops), 0xCA+3)
	}
	for i := 1; i < len(ops); i++ {
		if ops[i] <= ops[i-1] {
			t.Fatalf("Opcodes() not ascending at %d: %s after %s", i, ops[i], ops[i-1])
		}
	}
}

func TestLocalIndex(t *testing.T) {
	tests := []struct {
		ins  Instruction
		want int
	}{
		{Instruction{Op: OpIload, Local: 7}, 7},
		{Instruction{Op: OpIload1, Local: 7}, 1},
		{Instruction{Op: OpRet, Local: 4}, 4},
		{Instruction{Op: OpAstore0}, 0},
	}
	for _, tt := range tests {
		if got := tt.ins.LocalIndex(); got != tt.want {
			t.Errorf("%s: LocalIndex() = %d, want %d", tt.ins.Op, got, tt.want)
		}
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		ins  Instruction
		want string
	}{
		{Instruction{Offset: 3, Op: OpIload, Local: 5}, "3: iload 5"},
		{Instruction{Offset: 0, Op: OpAload0}, "0: aload_0"},
		{Instruction{Offset: 9, Op: OpIinc, Local: 2, Increment: -1}, "9: iinc 2 -1"},
		{Instruction{Offset: 4, Op: OpNew, Class: "java/lang/Object"}, "4: new java/lang/Object"},
		{
			Instruction{Offset: 1, Op: OpGetfield, Ref: &MemberRef{Owner: "a/B", Name: "x", Descriptor: "I"}},
			"1: getfield a/B.x:I",
		},
	}
	for _, tt := range tests {
		if got := tt.ins.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
