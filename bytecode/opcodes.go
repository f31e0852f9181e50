package bytecode

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Constants
const (
	OpNop        Opcode = 0x00 // no operation
	OpAconstNull Opcode = 0x01 // push null
	OpIconstM1   Opcode = 0x02 // push int -1
	OpIconst0    Opcode = 0x03
	OpIconst1    Opcode = 0x04
	OpIconst2    Opcode = 0x05
	OpIconst3    Opcode = 0x06
	OpIconst4    Opcode = 0x07
	OpIconst5    Opcode = 0x08
	OpLconst0    Opcode = 0x09 // push long 0
	OpLconst1    Opcode = 0x0A
	OpFconst0    Opcode = 0x0B // push float 0
	OpFconst1    Opcode = 0x0C
	OpFconst2    Opcode = 0x0D
	OpDconst0    Opcode = 0x0E // push double 0
	OpDconst1    Opcode = 0x0F
	OpBipush     Opcode = 0x10 // push sign-extended byte
	OpSipush     Opcode = 0x11 // push sign-extended short
	OpLdc        Opcode = 0x12 // push constant pool entry
	OpLdcW       Opcode = 0x13
	OpLdc2W      Opcode = 0x14 // push long or double constant
)

// Local loads
const (
	OpIload  Opcode = 0x15
	OpLload  Opcode = 0x16
	OpFload  Opcode = 0x17
	OpDload  Opcode = 0x18
	OpAload  Opcode = 0x19
	OpIload0 Opcode = 0x1A
	OpIload1 Opcode = 0x1B
	OpIload2 Opcode = 0x1C
	OpIload3 Opcode = 0x1D
	OpLload0 Opcode = 0x1E
	OpLload1 Opcode = 0x1F
	OpLload2 Opcode = 0x20
	OpLload3 Opcode = 0x21
	OpFload0 Opcode = 0x22
	OpFload1 Opcode = 0x23
	OpFload2 Opcode = 0x24
	OpFload3 Opcode = 0x25
	OpDload0 Opcode = 0x26
	OpDload1 Opcode = 0x27
	OpDload2 Opcode = 0x28
	OpDload3 Opcode = 0x29
	OpAload0 Opcode = 0x2A
	OpAload1 Opcode = 0x2B
	OpAload2 Opcode = 0x2C
	OpAload3 Opcode = 0x2D
)

// Array loads
const (
	OpIaload Opcode = 0x2E
	OpLaload Opcode = 0x2F
	OpFaload Opcode = 0x30
	OpDaload Opcode = 0x31
	OpAaload Opcode = 0x32
	OpBaload Opcode = 0x33 // byte or boolean array
	OpCaload Opcode = 0x34
	OpSaload Opcode = 0x35
)

// Local stores
const (
	OpIstore  Opcode = 0x36
	OpLstore  Opcode = 0x37
	OpFstore  Opcode = 0x38
	OpDstore  Opcode = 0x39
	OpAstore  Opcode = 0x3A
	OpIstore0 Opcode = 0x3B
	OpIstore1 Opcode = 0x3C
	OpIstore2 Opcode = 0x3D
	OpIstore3 Opcode = 0x3E
	OpLstore0 Opcode = 0x3F
	OpLstore1 Opcode = 0x40
	OpLstore2 Opcode = 0x41
	OpLstore3 Opcode = 0x42
	OpFstore0 Opcode = 0x43
	OpFstore1 Opcode = 0x44
	OpFstore2 Opcode = 0x45
	OpFstore3 Opcode = 0x46
	OpDstore0 Opcode = 0x47
	OpDstore1 Opcode = 0x48
	OpDstore2 Opcode = 0x49
	OpDstore3 Opcode = 0x4A
	OpAstore0 Opcode = 0x4B
	OpAstore1 Opcode = 0x4C
	OpAstore2 Opcode = 0x4D
	OpAstore3 Opcode = 0x4E
)

// Array stores
const (
	OpIastore Opcode = 0x4F
	OpLastore Opcode = 0x50
	OpFastore Opcode = 0x51
	OpDastore Opcode = 0x52
	OpAastore Opcode = 0x53
	OpBastore Opcode = 0x54
	OpCastore Opcode = 0x55
	OpSastore Opcode = 0x56
)

// Stack shuffles
const (
	OpPop    Opcode = 0x57
	OpPop2   Opcode = 0x58
	OpDup    Opcode = 0x59
	OpDupX1  Opcode = 0x5A
	OpDupX2  Opcode = 0x5B
	OpDup2   Opcode = 0x5C
	OpDup2X1 Opcode = 0x5D
	OpDup2X2 Opcode = 0x5E
	OpSwap   Opcode = 0x5F
)

// Arithmetic
const (
	OpIadd Opcode = 0x60
	OpLadd Opcode = 0x61
	OpFadd Opcode = 0x62
	OpDadd Opcode = 0x63
	OpIsub Opcode = 0x64
	OpLsub Opcode = 0x65
	OpFsub Opcode = 0x66
	OpDsub Opcode = 0x67
	OpImul Opcode = 0x68
	OpLmul Opcode = 0x69
	OpFmul Opcode = 0x6A
	OpDmul Opcode = 0x6B
	OpIdiv Opcode = 0x6C
	OpLdiv Opcode = 0x6D
	OpFdiv Opcode = 0x6E
	OpDdiv Opcode = 0x6F
	OpIrem Opcode = 0x70
	OpLrem Opcode = 0x71
	OpFrem Opcode = 0x72
	OpDrem Opcode = 0x73
	OpIneg Opcode = 0x74
	OpLneg Opcode = 0x75
	OpFneg Opcode = 0x76
	OpDneg Opcode = 0x77
)

// Shifts and bitwise
const (
	OpIshl  Opcode = 0x78
	OpLshl  Opcode = 0x79
	OpIshr  Opcode = 0x7A
	OpLshr  Opcode = 0x7B
	OpIushr Opcode = 0x7C
	OpLushr Opcode = 0x7D
	OpIand  Opcode = 0x7E
	OpLand  Opcode = 0x7F
	OpIor   Opcode = 0x80
	OpLor   Opcode = 0x81
	OpIxor  Opcode = 0x82
	OpLxor  Opcode = 0x83
	OpIinc  Opcode = 0x84 // increment int local in place
)

// Conversions
const (
	OpI2l Opcode = 0x85
	OpI2f Opcode = 0x86
	OpI2d Opcode = 0x87
	OpL2i Opcode = 0x88
	OpL2f Opcode = 0x89
	OpL2d Opcode = 0x8A
	OpF2i Opcode = 0x8B
	OpF2l Opcode = 0x8C
	OpF2d Opcode = 0x8D
	OpD2i Opcode = 0x8E
	OpD2l Opcode = 0x8F
	OpD2f Opcode = 0x90
	OpI2b Opcode = 0x91
	OpI2c Opcode = 0x92
	OpI2s Opcode = 0x93
)

// Comparisons
const (
	OpLcmp  Opcode = 0x94
	OpFcmpl Opcode = 0x95
	OpFcmpg Opcode = 0x96
	OpDcmpl Opcode = 0x97
	OpDcmpg Opcode = 0x98
)

// Control flow
const (
	OpIfeq         Opcode = 0x99
	OpIfne         Opcode = 0x9A
	OpIflt         Opcode = 0x9B
	OpIfge         Opcode = 0x9C
	OpIfgt         Opcode = 0x9D
	OpIfle         Opcode = 0x9E
	OpIfIcmpeq     Opcode = 0x9F
	OpIfIcmpne     Opcode = 0xA0
	OpIfIcmplt     Opcode = 0xA1
	OpIfIcmpge     Opcode = 0xA2
	OpIfIcmpgt     Opcode = 0xA3
	OpIfIcmple     Opcode = 0xA4
	OpIfAcmpeq     Opcode = 0xA5
	OpIfAcmpne     Opcode = 0xA6
	OpGoto         Opcode = 0xA7
	OpJsr          Opcode = 0xA8 // bounded subroutine call
	OpRet          Opcode = 0xA9 // bounded subroutine return through a local
	OpTableswitch  Opcode = 0xAA
	OpLookupswitch Opcode = 0xAB
)

// Returns
const (
	OpIreturn Opcode = 0xAC
	OpLreturn Opcode = 0xAD
	OpFreturn Opcode = 0xAE
	OpDreturn Opcode = 0xAF
	OpAreturn Opcode = 0xB0
	OpReturn  Opcode = 0xB1
)

// Fields and invocation
const (
	OpGetstatic       Opcode = 0xB2
	OpPutstatic       Opcode = 0xB3
	OpGetfield        Opcode = 0xB4
	OpPutfield        Opcode = 0xB5
	OpInvokevirtual   Opcode = 0xB6
	OpInvokespecial   Opcode = 0xB7
	OpInvokestatic    Opcode = 0xB8
	OpInvokeinterface Opcode = 0xB9
	OpInvokedynamic   Opcode = 0xBA
)

// Objects and arrays
const (
	OpNew            Opcode = 0xBB
	OpNewarray       Opcode = 0xBC // primitive array
	OpAnewarray      Opcode = 0xBD // reference array
	OpArraylength    Opcode = 0xBE
	OpAthrow         Opcode = 0xBF
	OpCheckcast      Opcode = 0xC0
	OpInstanceof     Opcode = 0xC1
	OpMonitorenter   Opcode = 0xC2
	OpMonitorexit    Opcode = 0xC3
	OpWide           Opcode = 0xC4 // prefix; graph builders fold it into the next instruction
	OpMultianewarray Opcode = 0xC5
	OpIfnull         Opcode = 0xC6
	OpIfnonnull      Opcode = 0xC7
	OpGotoW          Opcode = 0xC8
	OpJsrW           Opcode = 0xC9
)

// Reserved
const (
	OpBreakpoint Opcode = 0xCA
	OpImpdep1    Opcode = 0xFE
	OpImpdep2    Opcode = 0xFF
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// Flow describes how control leaves an instruction when it ends a block.
type Flow uint8

const (
	FlowNext   Flow = iota // falls through to the next instruction
	FlowBranch             // conditional branch: target plus fallthrough
	FlowGoto               // unconditional jump
	FlowSwitch             // multi-way jump
	FlowReturn             // leaves the method normally
	FlowThrow              // leaves the method through an exception
	FlowJsr                // bounded subroutine call
	FlowRet                // bounded subroutine return
)

// String returns a human-readable name for the flow kind.
func (f Flow) String() string {
	switch f {
	case FlowNext:
		return "next"
	case FlowBranch:
		return "branch"
	case FlowGoto:
		return "goto"
	case FlowSwitch:
		return "switch"
	case FlowReturn:
		return "return"
	case FlowThrow:
		return "throw"
	case FlowJsr:
		return "jsr"
	case FlowRet:
		return "ret"
	default:
		return fmt.Sprintf("Flow(%d)", f)
	}
}

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name  string // mnemonic
	Local int    // implicit local slot for the short forms, -1 otherwise
	Flow  Flow   // control-flow behaviour
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	// Constants
	OpNop:        {"nop", -1, FlowNext},
	OpAconstNull: {"aconst_null", -1, FlowNext},
	OpIconstM1:   {"iconst_m1", -1, FlowNext},
	OpIconst0:    {"iconst_0", -1, FlowNext},
	OpIconst1:    {"iconst_1", -1, FlowNext},
	OpIconst2:    {"iconst_2", -1, FlowNext},
	OpIconst3:    {"iconst_3", -1, FlowNext},
	OpIconst4:    {"iconst_4", -1, FlowNext},
	OpIconst5:    {"iconst_5", -1, FlowNext},
	OpLconst0:    {"lconst_0", -1, FlowNext},
	OpLconst1:    {"lconst_1", -1, FlowNext},
	OpFconst0:    {"fconst_0", -1, FlowNext},
	OpFconst1:    {"fconst_1", -1, FlowNext},
	OpFconst2:    {"fconst_2", -1, FlowNext},
	OpDconst0:    {"dconst_0", -1, FlowNext},
	OpDconst1:    {"dconst_1", -1, FlowNext},
	OpBipush:     {"bipush", -1, FlowNext},
	OpSipush:     {"sipush", -1, FlowNext},
	OpLdc:        {"ldc", -1, FlowNext},
	OpLdcW:       {"ldc_w", -1, FlowNext},
	OpLdc2W:      {"ldc2_w", -1, FlowNext},

	// Local loads
	OpIload:  {"iload", -1, FlowNext},
	OpLload:  {"lload", -1, FlowNext},
	OpFload:  {"fload", -1, FlowNext},
	OpDload:  {"dload", -1, FlowNext},
	OpAload:  {"aload", -1, FlowNext},
	OpIload0: {"iload_0", 0, FlowNext},
	OpIload1: {"iload_1", 1, FlowNext},
	OpIload2: {"iload_2", 2, FlowNext},
	OpIload3: {"iload_3", 3, FlowNext},
	OpLload0: {"lload_0", 0, FlowNext},
	OpLload1: {"lload_1", 1, FlowNext},
	OpLload2: {"lload_2", 2, FlowNext},
	OpLload3: {"lload_3", 3, FlowNext},
	OpFload0: {"fload_0", 0, FlowNext},
	OpFload1: {"fload_1", 1, FlowNext},
	OpFload2: {"fload_2", 2, FlowNext},
	OpFload3: {"fload_3", 3, FlowNext},
	OpDload0: {"dload_0", 0, FlowNext},
	OpDload1: {"dload_1", 1, FlowNext},
	OpDload2: {"dload_2", 2, FlowNext},
	OpDload3: {"dload_3", 3, FlowNext},
	OpAload0: {"aload_0", 0, FlowNext},
	OpAload1: {"aload_1", 1, FlowNext},
	OpAload2: {"aload_2", 2, FlowNext},
	OpAload3: {"aload_3", 3, FlowNext},

	// Array loads
	OpIaload: {"iaload", -1, FlowNext},
	OpLaload: {"laload", -1, FlowNext},
	OpFaload: {"faload", -1, FlowNext},
	OpDaload: {"daload", -1, FlowNext},
	OpAaload: {"aaload", -1, FlowNext},
	OpBaload: {"baload", -1, FlowNext},
	OpCaload: {"caload", -1, FlowNext},
	OpSaload: {"saload", -1, FlowNext},

	// Local stores
	OpIstore:  {"istore", -1, FlowNext},
	OpLstore:  {"lstore", -1, FlowNext},
	OpFstore:  {"fstore", -1, FlowNext},
	OpDstore:  {"dstore", -1, FlowNext},
	OpAstore:  {"astore", -1, FlowNext},
	OpIstore0: {"istore_0", 0, FlowNext},
	OpIstore1: {"istore_1", 1, FlowNext},
	OpIstore2: {"istore_2", 2, FlowNext},
	OpIstore3: {"istore_3", 3, FlowNext},
	OpLstore0: {"lstore_0", 0, FlowNext},
	OpLstore1: {"lstore_1", 1, FlowNext},
	OpLstore2: {"lstore_2", 2, FlowNext},
	OpLstore3: {"lstore_3", 3, FlowNext},
	OpFstore0: {"fstore_0", 0, FlowNext},
	OpFstore1: {"fstore_1", 1, FlowNext},
	OpFstore2: {"fstore_2", 2, FlowNext},
	OpFstore3: {"fstore_3", 3, FlowNext},
	OpDstore0: {"dstore_0", 0, FlowNext},
	OpDstore1: {"dstore_1", 1, FlowNext},
	OpDstore2: {"dstore_2", 2, FlowNext},
	OpDstore3: {"dstore_3", 3, FlowNext},
	OpAstore0: {"astore_0", 0, FlowNext},
	OpAstore1: {"astore_1", 1, FlowNext},
	OpAstore2: {"astore_2", 2, FlowNext},
	OpAstore3: {"astore_3", 3, FlowNext},

	// Array stores
	OpIastore: {"iastore", -1, FlowNext},
	OpLastore: {"lastore", -1, FlowNext},
	OpFastore: {"fastore", -1, FlowNext},
	OpDastore: {"dastore", -1, FlowNext},
	OpAastore: {"aastore", -1, FlowNext},
	OpBastore: {"bastore", -1, FlowNext},
	OpCastore: {"castore", -1, FlowNext},
	OpSastore: {"sastore", -1, FlowNext},

	// Stack shuffles
	OpPop:    {"pop", -1, FlowNext},
	OpPop2:   {"pop2", -1, FlowNext},
	OpDup:    {"dup", -1, FlowNext},
	OpDupX1:  {"dup_x1", -1, FlowNext},
	OpDupX2:  {"dup_x2", -1, FlowNext},
	OpDup2:   {"dup2", -1, FlowNext},
	OpDup2X1: {"dup2_x1", -1, FlowNext},
	OpDup2X2: {"dup2_x2", -1, FlowNext},
	OpSwap:   {"swap", -1, FlowNext},

	// Arithmetic
	OpIadd: {"iadd", -1, FlowNext},
	OpLadd: {"ladd", -1, FlowNext},
	OpFadd: {"fadd", -1, FlowNext},
	OpDadd: {"dadd", -1, FlowNext},
	OpIsub: {"isub", -1, FlowNext},
	OpLsub: {"lsub", -1, FlowNext},
	OpFsub: {"fsub", -1, FlowNext},
	OpDsub: {"dsub", -1, FlowNext},
	OpImul: {"imul", -1, FlowNext},
	OpLmul: {"lmul", -1, FlowNext},
	OpFmul: {"fmul", -1, FlowNext},
	OpDmul: {"dmul", -1, FlowNext},
	OpIdiv: {"idiv", -1, FlowNext},
	OpLdiv: {"ldiv", -1, FlowNext},
	OpFdiv: {"fdiv", -1, FlowNext},
	OpDdiv: {"ddiv", -1, FlowNext},
	OpIrem: {"irem", -1, FlowNext},
	OpLrem: {"lrem", -1, FlowNext},
	OpFrem: {"frem", -1, FlowNext},
	OpDrem: {"drem", -1, FlowNext},
	OpIneg: {"ineg", -1, FlowNext},
	OpLneg: {"lneg", -1, FlowNext},
	OpFneg: {"fneg", -1, FlowNext},
	OpDneg: {"dneg", -1, FlowNext},

	// Shifts and bitwise
	OpIshl:  {"ishl", -1, FlowNext},
	OpLshl:  {"lshl", -1, FlowNext},
	OpIshr:  {"ishr", -1, FlowNext},
	OpLshr:  {"lshr", -1, FlowNext},
	OpIushr: {"iushr", -1, FlowNext},
	OpLushr: {"lushr", -1, FlowNext},
	OpIand:  {"iand", -1, FlowNext},
	OpLand:  {"land", -1, FlowNext},
	OpIor:   {"ior", -1, FlowNext},
	OpLor:   {"lor", -1, FlowNext},
	OpIxor:  {"ixor", -1, FlowNext},
	OpLxor:  {"lxor", -1, FlowNext},
	OpIinc:  {"iinc", -1, FlowNext},

	// Conversions
	OpI2l: {"i2l", -1, FlowNext},
	OpI2f: {"i2f", -1, FlowNext},
	OpI2d: {"i2d", -1, FlowNext},
	OpL2i: {"l2i", -1, FlowNext},
	OpL2f: {"l2f", -1, FlowNext},
	OpL2d: {"l2d", -1, FlowNext},
	OpF2i: {"f2i", -1, FlowNext},
	OpF2l: {"f2l", -1, FlowNext},
	OpF2d: {"f2d", -1, FlowNext},
	OpD2i: {"d2i", -1, FlowNext},
	OpD2l: {"d2l", -1, FlowNext},
	OpD2f: {"d2f", -1, FlowNext},
	OpI2b: {"i2b", -1, FlowNext},
	OpI2c: {"i2c", -1, FlowNext},
	OpI2s: {"i2s", -1, FlowNext},

	// Comparisons
	OpLcmp:  {"lcmp", -1, FlowNext},
	OpFcmpl: {"fcmpl", -1, FlowNext},
	OpFcmpg: {"fcmpg", -1, FlowNext},
	OpDcmpl: {"dcmpl", -1, FlowNext},
	OpDcmpg: {"dcmpg", -1, FlowNext},

	// Control flow
	OpIfeq:         {"ifeq", -1, FlowBranch},
	OpIfne:         {"ifne", -1, FlowBranch},
	OpIflt:         {"iflt", -1, FlowBranch},
	OpIfge:         {"ifge", -1, FlowBranch},
	OpIfgt:         {"ifgt", -1, FlowBranch},
	OpIfle:         {"ifle", -1, FlowBranch},
	OpIfIcmpeq:     {"if_icmpeq", -1, FlowBranch},
	OpIfIcmpne:     {"if_icmpne", -1, FlowBranch},
	OpIfIcmplt:     {"if_icmplt", -1, FlowBranch},
	OpIfIcmpge:     {"if_icmpge", -1, FlowBranch},
	OpIfIcmpgt:     {"if_icmpgt", -1, FlowBranch},
	OpIfIcmple:     {"if_icmple", -1, FlowBranch},
	OpIfAcmpeq:     {"if_acmpeq", -1, FlowBranch},
	OpIfAcmpne:     {"if_acmpne", -1, FlowBranch},
	OpGoto:         {"goto", -1, FlowGoto},
	OpJsr:          {"jsr", -1, FlowJsr},
	OpRet:          {"ret", -1, FlowRet},
	OpTableswitch:  {"tableswitch", -1, FlowSwitch},
	OpLookupswitch: {"lookupswitch", -1, FlowSwitch},

	// Returns
	OpIreturn: {"ireturn", -1, FlowReturn},
	OpLreturn: {"lreturn", -1, FlowReturn},
	OpFreturn: {"freturn", -1, FlowReturn},
	OpDreturn: {"dreturn", -1, FlowReturn},
	OpAreturn: {"areturn", -1, FlowReturn},
	OpReturn:  {"return", -1, FlowReturn},

	// Fields and invocation
	OpGetstatic:       {"getstatic", -1, FlowNext},
	OpPutstatic:       {"putstatic", -1, FlowNext},
	OpGetfield:        {"getfield", -1, FlowNext},
	OpPutfield:        {"putfield", -1, FlowNext},
	OpInvokevirtual:   {"invokevirtual", -1, FlowNext},
	OpInvokespecial:   {"invokespecial", -1, FlowNext},
	OpInvokestatic:    {"invokestatic", -1, FlowNext},
	OpInvokeinterface: {"invokeinterface", -1, FlowNext},
	OpInvokedynamic:   {"invokedynamic", -1, FlowNext},

	// Objects and arrays
	OpNew:            {"new", -1, FlowNext},
	OpNewarray:       {"newarray", -1, FlowNext},
	OpAnewarray:      {"anewarray", -1, FlowNext},
	OpArraylength:    {"arraylength", -1, FlowNext},
	OpAthrow:         {"athrow", -1, FlowThrow},
	OpCheckcast:      {"checkcast", -1, FlowNext},
	OpInstanceof:     {"instanceof", -1, FlowNext},
	OpMonitorenter:   {"monitorenter", -1, FlowNext},
	OpMonitorexit:    {"monitorexit", -1, FlowNext},
	OpWide:           {"wide", -1, FlowNext},
	OpMultianewarray: {"multianewarray", -1, FlowNext},
	OpIfnull:         {"ifnull", -1, FlowBranch},
	OpIfnonnull:      {"ifnonnull", -1, FlowBranch},
	OpGotoW:          {"goto_w", -1, FlowGoto},
	OpJsrW:           {"jsr_w", -1, FlowJsr},

	// Reserved
	OpBreakpoint: {"breakpoint", -1, FlowNext},
	OpImpdep1:    {"impdep1", -1, FlowNext},
	OpImpdep2:    {"impdep2", -1, FlowNext},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), Local: -1, Flow: FlowNext}
}

// IsDefined reports whether op is part of the instruction set.
func (op Opcode) IsDefined() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	return op.Info().Name
}

// Opcodes returns every defined opcode in ascending order.
func Opcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeTable))
	for i := 0; i < 256; i++ {
		if Opcode(i).IsDefined() {
			ops = append(ops, Opcode(i))
		}
	}
	return ops
}
