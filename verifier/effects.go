package verifier

import (
	"github.com/chazu/bcverify/bytecode"
	"github.com/chazu/bcverify/hierarchy"
)

// effectFunc applies one instruction to the working frame.
type effectFunc func(v *Verifier, f *Frame, ins *bytecode.Instruction) error

// effects is indexed by opcode. Every defined opcode has an entry; jsr and
// ret are only valid as block terminators, where the driver hands them to
// the subroutine tracker instead.
var effects [256]effectFunc

func init() {
	e := &effects

	e[bytecode.OpNop] = func(*Verifier, *Frame, *bytecode.Instruction) error { return nil }

	// Constants
	e[bytecode.OpAconstNull] = push(Null)
	for _, op := range []bytecode.Opcode{
		bytecode.OpIconstM1, bytecode.OpIconst0, bytecode.OpIconst1, bytecode.OpIconst2,
		bytecode.OpIconst3, bytecode.OpIconst4, bytecode.OpIconst5, bytecode.OpBipush, bytecode.OpSipush,
	} {
		e[op] = push(Int)
	}
	e[bytecode.OpLconst0] = push(Long)
	e[bytecode.OpLconst1] = push(Long)
	e[bytecode.OpFconst0] = push(Float)
	e[bytecode.OpFconst1] = push(Float)
	e[bytecode.OpFconst2] = push(Float)
	e[bytecode.OpDconst0] = push(Double)
	e[bytecode.OpDconst1] = push(Double)
	e[bytecode.OpLdc] = ldc(false)
	e[bytecode.OpLdcW] = ldc(false)
	e[bytecode.OpLdc2W] = ldc(true)

	// Locals
	loads := []struct {
		t   Type
		ops []bytecode.Opcode
	}{
		{Int, []bytecode.Opcode{bytecode.OpIload, bytecode.OpIload0, bytecode.OpIload1, bytecode.OpIload2, bytecode.OpIload3}},
		{Long, []bytecode.Opcode{bytecode.OpLload, bytecode.OpLload0, bytecode.OpLload1, bytecode.OpLload2, bytecode.OpLload3}},
		{Float, []bytecode.Opcode{bytecode.OpFload, bytecode.OpFload0, bytecode.OpFload1, bytecode.OpFload2, bytecode.OpFload3}},
		{Double, []bytecode.Opcode{bytecode.OpDload, bytecode.OpDload0, bytecode.OpDload1, bytecode.OpDload2, bytecode.OpDload3}},
	}
	for _, l := range loads {
		for _, op := range l.ops {
			e[op] = load(l.t)
		}
	}
	for _, op := range []bytecode.Opcode{bytecode.OpAload, bytecode.OpAload0, bytecode.OpAload1, bytecode.OpAload2, bytecode.OpAload3} {
		e[op] = aload
	}
	stores := []struct {
		t   Type
		ops []bytecode.Opcode
	}{
		{Int, []bytecode.Opcode{bytecode.OpIstore, bytecode.OpIstore0, bytecode.OpIstore1, bytecode.OpIstore2, bytecode.OpIstore3}},
		{Long, []bytecode.Opcode{bytecode.OpLstore, bytecode.OpLstore0, bytecode.OpLstore1, bytecode.OpLstore2, bytecode.OpLstore3}},
		{Float, []bytecode.Opcode{bytecode.OpFstore, bytecode.OpFstore0, bytecode.OpFstore1, bytecode.OpFstore2, bytecode.OpFstore3}},
		{Double, []bytecode.Opcode{bytecode.OpDstore, bytecode.OpDstore0, bytecode.OpDstore1, bytecode.OpDstore2, bytecode.OpDstore3}},
	}
	for _, s := range stores {
		for _, op := range s.ops {
			e[op] = store(s.t)
		}
	}
	for _, op := range []bytecode.Opcode{bytecode.OpAstore, bytecode.OpAstore0, bytecode.OpAstore1, bytecode.OpAstore2, bytecode.OpAstore3} {
		e[op] = astore
	}
	e[bytecode.OpIinc] = iinc

	// Arrays
	e[bytecode.OpIaload] = arrayLoad("I")
	e[bytecode.OpLaload] = arrayLoad("J")
	e[bytecode.OpFaload] = arrayLoad("F")
	e[bytecode.OpDaload] = arrayLoad("D")
	e[bytecode.OpBaload] = arrayLoad("B", "Z")
	e[bytecode.OpCaload] = arrayLoad("C")
	e[bytecode.OpSaload] = arrayLoad("S")
	e[bytecode.OpAaload] = aaload
	e[bytecode.OpIastore] = arrayStore("I")
	e[bytecode.OpLastore] = arrayStore("J")
	e[bytecode.OpFastore] = arrayStore("F")
	e[bytecode.OpDastore] = arrayStore("D")
	e[bytecode.OpBastore] = arrayStore("B", "Z")
	e[bytecode.OpCastore] = arrayStore("C")
	e[bytecode.OpSastore] = arrayStore("S")
	e[bytecode.OpAastore] = aastore
	e[bytecode.OpArraylength] = arraylength

	// Stack
	e[bytecode.OpPop] = drop(1)
	e[bytecode.OpPop2] = drop(2)
	e[bytecode.OpDup] = dup(1, 1)
	e[bytecode.OpDupX1] = dup(1, 2)
	e[bytecode.OpDupX2] = dup(1, 3)
	e[bytecode.OpDup2] = dup(2, 2)
	e[bytecode.OpDup2X1] = dup(2, 3)
	e[bytecode.OpDup2X2] = dup(2, 4)
	e[bytecode.OpSwap] = swap

	// Arithmetic
	for _, t := range []struct {
		t   Type
		ops []bytecode.Opcode
	}{
		{Int, []bytecode.Opcode{bytecode.OpIadd, bytecode.OpIsub, bytecode.OpImul, bytecode.OpIdiv, bytecode.OpIrem, bytecode.OpIand, bytecode.OpIor, bytecode.OpIxor}},
		{Long, []bytecode.Opcode{bytecode.OpLadd, bytecode.OpLsub, bytecode.OpLmul, bytecode.OpLdiv, bytecode.OpLrem, bytecode.OpLand, bytecode.OpLor, bytecode.OpLxor}},
		{Float, []bytecode.Opcode{bytecode.OpFadd, bytecode.OpFsub, bytecode.OpFmul, bytecode.OpFdiv, bytecode.OpFrem}},
		{Double, []bytecode.Opcode{bytecode.OpDadd, bytecode.OpDsub, bytecode.OpDmul, bytecode.OpDdiv, bytecode.OpDrem}},
	} {
		for _, op := range t.ops {
			e[op] = binary(t.t)
		}
	}
	e[bytecode.OpIneg] = convert(Int, Int)
	e[bytecode.OpLneg] = convert(Long, Long)
	e[bytecode.OpFneg] = convert(Float, Float)
	e[bytecode.OpDneg] = convert(Double, Double)
	e[bytecode.OpIshl] = shift(Int)
	e[bytecode.OpIshr] = shift(Int)
	e[bytecode.OpIushr] = shift(Int)
	e[bytecode.OpLshl] = shift(Long)
	e[bytecode.OpLshr] = shift(Long)
	e[bytecode.OpLushr] = shift(Long)

	// Conversions
	e[bytecode.OpI2l] = convert(Int, Long)
	e[bytecode.OpI2f] = convert(Int, Float)
	e[bytecode.OpI2d] = convert(Int, Double)
	e[bytecode.OpL2i] = convert(Long, Int)
	e[bytecode.OpL2f] = convert(Long, Float)
	e[bytecode.OpL2d] = convert(Long, Double)
	e[bytecode.OpF2i] = convert(Float, Int)
	e[bytecode.OpF2l] = convert(Float, Long)
	e[bytecode.OpF2d] = convert(Float, Double)
	e[bytecode.OpD2i] = convert(Double, Int)
	e[bytecode.OpD2l] = convert(Double, Long)
	e[bytecode.OpD2f] = convert(Double, Float)
	e[bytecode.OpI2b] = convert(Int, Int)
	e[bytecode.OpI2c] = convert(Int, Int)
	e[bytecode.OpI2s] = convert(Int, Int)

	// Comparisons and branches
	e[bytecode.OpLcmp] = compare(Long)
	e[bytecode.OpFcmpl] = compare(Float)
	e[bytecode.OpFcmpg] = compare(Float)
	e[bytecode.OpDcmpl] = compare(Double)
	e[bytecode.OpDcmpg] = compare(Double)
	for _, op := range []bytecode.Opcode{
		bytecode.OpIfeq, bytecode.OpIfne, bytecode.OpIflt, bytecode.OpIfge, bytecode.OpIfgt, bytecode.OpIfle,
		bytecode.OpTableswitch, bytecode.OpLookupswitch,
	} {
		e[op] = consume(Int)
	}
	for _, op := range []bytecode.Opcode{
		bytecode.OpIfIcmpeq, bytecode.OpIfIcmpne, bytecode.OpIfIcmplt,
		bytecode.OpIfIcmpge, bytecode.OpIfIcmpgt, bytecode.OpIfIcmple,
	} {
		e[op] = consume(Int, Int)
	}
	e[bytecode.OpIfAcmpeq] = consume(AnyReference, AnyReference)
	e[bytecode.OpIfAcmpne] = consume(AnyReference, AnyReference)
	e[bytecode.OpIfnull] = consume(AnyReference)
	e[bytecode.OpIfnonnull] = consume(AnyReference)
	e[bytecode.OpGoto] = consume()
	e[bytecode.OpGotoW] = consume()

	// Returns
	e[bytecode.OpIreturn] = valueReturn(Int)
	e[bytecode.OpLreturn] = valueReturn(Long)
	e[bytecode.OpFreturn] = valueReturn(Float)
	e[bytecode.OpDreturn] = valueReturn(Double)
	e[bytecode.OpAreturn] = areturn
	e[bytecode.OpReturn] = voidReturn

	// Fields and methods
	e[bytecode.OpGetstatic] = getstatic
	e[bytecode.OpPutstatic] = putstatic
	e[bytecode.OpGetfield] = getfield
	e[bytecode.OpPutfield] = putfield
	e[bytecode.OpInvokevirtual] = invoke
	e[bytecode.OpInvokespecial] = invoke
	e[bytecode.OpInvokestatic] = invoke
	e[bytecode.OpInvokeinterface] = invoke
	e[bytecode.OpInvokedynamic] = invoke

	// Objects
	e[bytecode.OpNew] = newObject
	e[bytecode.OpNewarray] = newarray
	e[bytecode.OpAnewarray] = anewarray
	e[bytecode.OpMultianewarray] = multianewarray
	e[bytecode.OpAthrow] = athrow
	e[bytecode.OpCheckcast] = checkcast
	e[bytecode.OpInstanceof] = instanceof
	e[bytecode.OpMonitorenter] = consume(AnyReference)
	e[bytecode.OpMonitorexit] = consume(AnyReference)

	// Subroutines are handled by the driver.
	for _, op := range []bytecode.Opcode{bytecode.OpJsr, bytecode.OpJsrW, bytecode.OpRet} {
		e[op] = notTerminal
	}

	for _, op := range []bytecode.Opcode{bytecode.OpWide, bytecode.OpBreakpoint, bytecode.OpImpdep1, bytecode.OpImpdep2} {
		e[op] = reserved
	}
}

// ---------------------------------------------------------------------------
// Operand helpers
// ---------------------------------------------------------------------------

// popValue pops a value that must be usable as want, consuming the second
// word of long and double.
func (v *Verifier) popValue(f *Frame, want Type) (Type, error) {
	if want.IsWide() {
		hi, err := f.Pop()
		if err != nil {
			return Invalid, err
		}
		if hi != SecondWord {
			return Invalid, typeErrorf("expected %s, found %s", want, hi)
		}
		lo, err := f.Pop()
		if err != nil {
			return Invalid, err
		}
		if lo != want {
			return Invalid, typeErrorf("expected %s, found %s", want, lo)
		}
		return lo, nil
	}
	t, err := f.Pop()
	if err != nil {
		return Invalid, err
	}
	if t == SecondWord {
		return Invalid, stackErrorf("expected %s, found the second word of a two-word value", want)
	}
	if !v.types.IsSubtypeOf(t, want) {
		return Invalid, typeErrorf("expected %s, found %s", want, t)
	}
	return t, nil
}

// popAny pops one single-word value of any type.
func popAny(f *Frame) (Type, error) {
	t, err := f.Pop()
	if err != nil {
		return Invalid, err
	}
	if t == SecondWord {
		return Invalid, stackErrorf("found the second word of a two-word value")
	}
	return t, nil
}

// popArray pops an array reference or null.
func (v *Verifier) popArray(f *Frame) (Type, error) {
	return v.popValue(f, AnyArray)
}

func memberRef(ins *bytecode.Instruction) (*bytecode.MemberRef, error) {
	if ins.Ref == nil {
		return nil, structuralErrorf("%s without a member reference", ins.Op)
	}
	if ins.Ref.Owner == "" && ins.Op != bytecode.OpInvokedynamic {
		return nil, structuralErrorf("%s of %s without an owner", ins.Op, ins.Ref.Name)
	}
	if ins.Ref.Owner != "" && ins.Ref.Owner[0] == '[' {
		if err := bytecode.ValidateFieldDescriptor(ins.Ref.Owner); err != nil {
			return nil, structuralErrorf("%s of %s: owner: %v", ins.Op, ins.Ref.Name, err)
		}
	}
	return ins.Ref, nil
}

func (v *Verifier) fieldType(ref *bytecode.MemberRef) (Type, error) {
	t, err := v.types.Field(ref.Descriptor)
	if err != nil {
		return Invalid, structuralErrorf("field %s: %v", ref, err)
	}
	return t, nil
}

// classOperand returns the type named by an instruction's class operand.
func (v *Verifier) classOperand(ins *bytecode.Instruction) (Type, error) {
	if ins.Class == "" {
		return Invalid, structuralErrorf("%s without a class operand", ins.Op)
	}
	if ins.Class[0] == '[' {
		if err := bytecode.ValidateFieldDescriptor(ins.Class); err != nil {
			return Invalid, structuralErrorf("%s: %v", ins.Op, err)
		}
	}
	return classRefType(ins.Class), nil
}

// ---------------------------------------------------------------------------
// Effects
// ---------------------------------------------------------------------------

func push(t Type) effectFunc {
	return func(_ *Verifier, f *Frame, _ *bytecode.Instruction) error {
		return f.PushValue(t)
	}
}

// consume pops the given operands, top of stack last.
func consume(want ...Type) effectFunc {
	return func(v *Verifier, f *Frame, _ *bytecode.Instruction) error {
		for i := len(want) - 1; i >= 0; i-- {
			if _, err := v.popValue(f, want[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

func binary(t Type) effectFunc {
	return func(v *Verifier, f *Frame, _ *bytecode.Instruction) error {
		if _, err := v.popValue(f, t); err != nil {
			return err
		}
		if _, err := v.popValue(f, t); err != nil {
			return err
		}
		return f.PushValue(t)
	}
}

func shift(t Type) effectFunc {
	return func(v *Verifier, f *Frame, _ *bytecode.Instruction) error {
		if _, err := v.popValue(f, Int); err != nil {
			return err
		}
		if _, err := v.popValue(f, t); err != nil {
			return err
		}
		return f.PushValue(t)
	}
}

func convert(from, to Type) effectFunc {
	return func(v *Verifier, f *Frame, _ *bytecode.Instruction) error {
		if _, err := v.popValue(f, from); err != nil {
			return err
		}
		return f.PushValue(to)
	}
}

func compare(t Type) effectFunc {
	return func(v *Verifier, f *Frame, _ *bytecode.Instruction) error {
		if _, err := v.popValue(f, t); err != nil {
			return err
		}
		if _, err := v.popValue(f, t); err != nil {
			return err
		}
		return f.Push(Int)
	}
}

func ldc(wide bool) effectFunc {
	return func(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
		c := ins.Const
		if c == nil {
			return structuralErrorf("%s without a constant", ins.Op)
		}
		var t Type
		switch c.Kind {
		case bytecode.ConstInt:
			t = Int
		case bytecode.ConstFloat:
			t = Float
		case bytecode.ConstLong:
			t = Long
		case bytecode.ConstDouble:
			t = Double
		case bytecode.ConstString:
			t = ObjectType(hierarchy.StringClass)
		case bytecode.ConstClass:
			t = ObjectType(hierarchy.ClassClass)
		case bytecode.ConstMethodType:
			t = ObjectType(hierarchy.MethodTypeClass)
		case bytecode.ConstMethodHandle:
			t = ObjectType(hierarchy.MethodHandleClass)
		case bytecode.ConstDynamic:
			var err error
			if t, err = v.types.Field(c.Descriptor); err != nil {
				return structuralErrorf("dynamic constant: %v", err)
			}
		default:
			return structuralErrorf("%s of unknown constant kind %s", ins.Op, c.Kind)
		}
		if t.IsWide() != wide {
			return structuralErrorf("%s cannot load a %s constant", ins.Op, t)
		}
		return f.PushValue(t)
	}
}

func load(t Type) effectFunc {
	return func(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
		i := ins.LocalIndex()
		lt, err := f.Local(i)
		if err != nil {
			return err
		}
		if t.IsWide() {
			hi, err := f.Local(i + 1)
			if err != nil {
				return err
			}
			if lt != t || hi != SecondWord {
				return typeErrorf("local %d: expected %s, found %s", i, t, lt)
			}
		} else if !v.types.IsSubtypeOf(lt, t) {
			return typeErrorf("local %d: expected %s, found %s", i, t, lt)
		}
		return f.PushValue(t)
	}
}

// aload loads any reference, including uninitialized objects, but not a
// return address.
func aload(_ *Verifier, f *Frame, ins *bytecode.Instruction) error {
	i := ins.LocalIndex()
	lt, err := f.Local(i)
	if err != nil {
		return err
	}
	if !lt.IsReference() && !lt.IsUninitialized() {
		return typeErrorf("local %d: expected a reference, found %s", i, lt)
	}
	return f.Push(lt)
}

func store(t Type) effectFunc {
	return func(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
		if _, err := v.popValue(f, t); err != nil {
			return err
		}
		return f.SetLocal(ins.LocalIndex(), t)
	}
}

// astore stores references, uninitialized objects and return addresses.
func astore(_ *Verifier, f *Frame, ins *bytecode.Instruction) error {
	t, err := popAny(f)
	if err != nil {
		return err
	}
	if !t.IsReference() && !t.IsUninitialized() && t.kind != KindReturnAddress {
		return typeErrorf("expected a reference, found %s", t)
	}
	return f.SetLocal(ins.LocalIndex(), t)
}

func iinc(_ *Verifier, f *Frame, ins *bytecode.Instruction) error {
	lt, err := f.Local(ins.Local)
	if err != nil {
		return err
	}
	if lt != Int {
		return typeErrorf("local %d: expected int, found %s", ins.Local, lt)
	}
	return f.SetLocal(ins.Local, Int)
}

// arrayLoad handles the primitive array loads. elems lists the element
// descriptors the array may have; baload reads both byte and boolean arrays.
func arrayLoad(elems ...string) effectFunc {
	result := descriptorType(elems[0])
	return func(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
		if _, err := v.popValue(f, Int); err != nil {
			return err
		}
		arr, err := v.popArray(f)
		if err != nil {
			return err
		}
		if err := checkElem(arr, elems); err != nil {
			return err
		}
		return f.PushValue(result)
	}
}

func arrayStore(elems ...string) effectFunc {
	value := descriptorType(elems[0])
	return func(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
		if _, err := v.popValue(f, value); err != nil {
			return err
		}
		if _, err := v.popValue(f, Int); err != nil {
			return err
		}
		arr, err := v.popArray(f)
		if err != nil {
			return err
		}
		return checkElem(arr, elems)
	}
}

func checkElem(arr Type, elems []string) error {
	if arr.kind == KindNull {
		return nil
	}
	ed := arr.ElemDescriptor()
	for _, e := range elems {
		if ed == e {
			return nil
		}
	}
	return typeErrorf("expected [%s, found %s", elems[0], arr)
}

// aaload pushes the element type; loading from a null array pushes null.
func aaload(v *Verifier, f *Frame, _ *bytecode.Instruction) error {
	if _, err := v.popValue(f, Int); err != nil {
		return err
	}
	arr, err := v.popArray(f)
	if err != nil {
		return err
	}
	if arr.kind == KindNull {
		return f.Push(Null)
	}
	if !arr.hasReferenceElems() {
		return typeErrorf("expected an array of references, found %s", arr)
	}
	return f.Push(arr.Elem())
}

// aastore requires the value to fit the array's element type. A null
// array accepts any reference.
func aastore(v *Verifier, f *Frame, _ *bytecode.Instruction) error {
	val, err := v.popValue(f, AnyReference)
	if err != nil {
		return err
	}
	if _, err := v.popValue(f, Int); err != nil {
		return err
	}
	arr, err := v.popArray(f)
	if err != nil {
		return err
	}
	if arr.kind == KindNull {
		return nil
	}
	if !arr.hasReferenceElems() {
		return typeErrorf("expected an array of references, found %s", arr)
	}
	if elem := arr.Elem(); !v.types.IsSubtypeOf(val, elem) {
		return typeErrorf("cannot store %s in %s", val, arr)
	}
	return nil
}

func arraylength(v *Verifier, f *Frame, _ *bytecode.Instruction) error {
	if _, err := v.popArray(f); err != nil {
		return err
	}
	return f.Push(Int)
}

// drop implements pop and pop2.
func drop(n int) effectFunc {
	return func(_ *Verifier, f *Frame, _ *bytecode.Instruction) error {
		if err := f.checkBoundary(n); err != nil {
			return err
		}
		f.stack = f.stack[:len(f.stack)-n]
		return nil
	}
}

// dup copies the top n slots and inserts the copy depth slots below the
// top. Neither the copied range nor the insertion point may cut a two-word
// value in half.
func dup(n, depth int) effectFunc {
	return func(_ *Verifier, f *Frame, _ *bytecode.Instruction) error {
		if err := f.checkBoundary(n); err != nil {
			return err
		}
		if depth > n {
			if err := f.checkBoundary(depth); err != nil {
				return err
			}
		}
		if len(f.stack)+n > f.maxStack {
			return stackErrorf("stack overflow: max stack %d exceeded", f.maxStack)
		}
		top := append([]Type(nil), f.stack[len(f.stack)-n:]...)
		at := len(f.stack) - depth
		rest := append([]Type(nil), f.stack[at:]...)
		f.stack = append(append(f.stack[:at], top...), rest...)
		return nil
	}
}

func swap(_ *Verifier, f *Frame, _ *bytecode.Instruction) error {
	if err := f.checkBoundary(1); err != nil {
		return err
	}
	if err := f.checkBoundary(2); err != nil {
		return err
	}
	n := len(f.stack)
	f.stack[n-1], f.stack[n-2] = f.stack[n-2], f.stack[n-1]
	return nil
}

func valueReturn(t Type) effectFunc {
	return func(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
		if v.returnType != t {
			return structuralErrorf("%s in a method returning %s", ins.Op, v.returnType)
		}
		if _, err := v.popValue(f, t); err != nil {
			return err
		}
		return v.checkConstructed(f)
	}
}

func areturn(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	if !isClassOrArray(v.returnType) {
		return structuralErrorf("%s in a method returning %s", ins.Op, v.returnType)
	}
	t, err := popAny(f)
	if err != nil {
		return err
	}
	if !t.IsReference() || !v.types.IsSubtypeOf(t, v.returnType) {
		return typeErrorf("returned %s is not assignable to %s", t, v.returnType)
	}
	return v.checkConstructed(f)
}

func voidReturn(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	if v.returnType != Void {
		return structuralErrorf("%s in a method returning %s", ins.Op, v.returnType)
	}
	return v.checkConstructed(f)
}

// checkConstructed rejects a constructor return before the superclass or
// sibling constructor has run.
func (v *Verifier) checkConstructed(f *Frame) error {
	if !v.thisUninit {
		return nil
	}
	ut := UninitThis(v.method.Class)
	for _, t := range f.locals {
		if t == ut {
			return structuralErrorf("constructor returns before initializing this")
		}
	}
	for _, t := range f.stack {
		if t == ut {
			return structuralErrorf("constructor returns before initializing this")
		}
	}
	return nil
}

func getstatic(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	ref, err := memberRef(ins)
	if err != nil {
		return err
	}
	t, err := v.fieldType(ref)
	if err != nil {
		return err
	}
	return f.PushValue(t)
}

func putstatic(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	ref, err := memberRef(ins)
	if err != nil {
		return err
	}
	t, err := v.fieldType(ref)
	if err != nil {
		return err
	}
	_, err = v.popValue(f, t)
	return err
}

func getfield(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	ref, err := memberRef(ins)
	if err != nil {
		return err
	}
	t, err := v.fieldType(ref)
	if err != nil {
		return err
	}
	owner := v.types.fieldOwner(ref.Owner, ref.Name, ref.Descriptor)
	if _, err := v.popValue(f, classRefType(owner)); err != nil {
		return err
	}
	return f.PushValue(t)
}

// putfield may store through an uninitialized receiver of the field's own
// class, as compilers do for synthetic outer-instance fields before the
// super call.
func putfield(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	ref, err := memberRef(ins)
	if err != nil {
		return err
	}
	t, err := v.fieldType(ref)
	if err != nil {
		return err
	}
	if _, err := v.popValue(f, t); err != nil {
		return err
	}
	recv, err := popAny(f)
	if err != nil {
		return err
	}
	if recv.IsUninitialized() && recv.class == ref.Owner {
		return nil
	}
	owner := v.types.fieldOwner(ref.Owner, ref.Name, ref.Descriptor)
	if !recv.IsReference() || !v.types.IsSubtypeOf(recv, classRefType(owner)) {
		return typeErrorf("field %s: receiver %s is not a %s", ref, recv, owner)
	}
	return nil
}

func invoke(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	ref, err := memberRef(ins)
	if err != nil {
		return err
	}
	mt, err := v.types.Method(ref.Descriptor)
	if err != nil {
		return structuralErrorf("method %s: %v", ref, err)
	}
	ctor := ref.Name == "<init>"
	switch {
	case ref.Name == "<clinit>":
		return structuralErrorf("%s cannot call a class initializer", ins.Op)
	case ctor && ins.Op != bytecode.OpInvokespecial:
		return structuralErrorf("%s cannot call a constructor", ins.Op)
	case ctor && mt.Return != Void:
		return structuralErrorf("constructor %s must return void", ref)
	}
	if ins.Op == bytecode.OpInvokestatic || ins.Op == bytecode.OpInvokevirtual {
		if static, ok := v.types.methodStatic(ref.Owner, ref.Name, ref.Descriptor); ok && static != (ins.Op == bytecode.OpInvokestatic) {
			return structuralErrorf("%s on %s method %s", ins.Op, staticName(static), ref)
		}
	}

	for i := len(mt.Params) - 1; i >= 0; i-- {
		if _, err := v.popValue(f, mt.Params[i]); err != nil {
			return err
		}
	}

	switch ins.Op {
	case bytecode.OpInvokestatic, bytecode.OpInvokedynamic:
	default:
		recv, err := popAny(f)
		if err != nil {
			return err
		}
		if ctor {
			if err := v.construct(f, recv, ref); err != nil {
				return err
			}
		} else if !recv.IsReference() || !v.types.IsSubtypeOf(recv, classRefType(ref.Owner)) {
			return typeErrorf("method %s: receiver %s is not a %s", ref, recv, ref.Owner)
		}
	}

	if mt.Return != Void {
		return f.PushValue(mt.Return)
	}
	return nil
}

func staticName(static bool) string {
	if static {
		return "static"
	}
	return "instance"
}

// construct checks the receiver of a constructor call and marks every copy
// of it as initialized.
func (v *Verifier) construct(f *Frame, recv Type, ref *bytecode.MemberRef) error {
	var initialized Type
	switch recv.kind {
	case KindUninitNew:
		if recv.class != ref.Owner {
			return typeErrorf("constructor %s called on %s", ref, recv)
		}
		initialized = ObjectType(recv.class)
	case KindUninitThis:
		if recv.class != ref.Owner && !v.types.IsSubtypeOf(recv, UninitThis(ref.Owner)) {
			return typeErrorf("constructor %s called on %s", ref, recv)
		}
		initialized = ObjectType(recv.class)
	default:
		return typeErrorf("constructor %s called on initialized %s", ref, recv)
	}
	f.ReplaceAll(recv, initialized)
	return nil
}

// newObject pushes an uninitialized object tagged with the allocation
// site. A stale copy from an earlier pass through the same site may not be
// live on the stack; in locals it becomes unusable.
func newObject(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	t, err := v.classOperand(ins)
	if err != nil {
		return err
	}
	if t.kind != KindObject {
		return structuralErrorf("new of array type %s", t)
	}
	u := UninitNew(t.class, ins.Offset)
	for _, s := range f.stack {
		if s == u {
			return typeErrorf("%s from an earlier pass is still on the stack", u)
		}
	}
	f.ReplaceAll(u, Invalid)
	return f.Push(u)
}

func newarray(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	switch ins.Class {
	case "Z", "B", "C", "S", "I", "J", "F", "D":
	default:
		return structuralErrorf("newarray of %q", ins.Class)
	}
	if _, err := v.popValue(f, Int); err != nil {
		return err
	}
	return f.Push(arrayType("[" + ins.Class))
}

func anewarray(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	t, err := v.classOperand(ins)
	if err != nil {
		return err
	}
	if t.Dimensions() >= 255 {
		return structuralErrorf("anewarray of %s exceeds 255 dimensions", t)
	}
	if _, err := v.popValue(f, Int); err != nil {
		return err
	}
	return f.Push(ArrayOf(t))
}

func multianewarray(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	t, err := v.classOperand(ins)
	if err != nil {
		return err
	}
	if t.kind != KindArray {
		return structuralErrorf("multianewarray of non-array %s", t)
	}
	if ins.Dims < 1 || ins.Dims > t.Dimensions() {
		return structuralErrorf("multianewarray of %s with %d dimensions", t, ins.Dims)
	}
	for i := 0; i < ins.Dims; i++ {
		if _, err := v.popValue(f, Int); err != nil {
			return err
		}
	}
	return f.Push(t)
}

func athrow(v *Verifier, f *Frame, _ *bytecode.Instruction) error {
	_, err := v.popValue(f, throwableType)
	return err
}

// checkcast only requires a reference; the cast itself is checked at run
// time.
func checkcast(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	t, err := v.classOperand(ins)
	if err != nil {
		return err
	}
	if _, err := v.popValue(f, AnyReference); err != nil {
		return err
	}
	return f.Push(t)
}

func instanceof(v *Verifier, f *Frame, ins *bytecode.Instruction) error {
	if _, err := v.classOperand(ins); err != nil {
		return err
	}
	if _, err := v.popValue(f, AnyReference); err != nil {
		return err
	}
	return f.Push(Int)
}

func notTerminal(_ *Verifier, _ *Frame, ins *bytecode.Instruction) error {
	return structuralErrorf("%s must end its basic block", ins.Op)
}

func reserved(_ *Verifier, _ *Frame, ins *bytecode.Instruction) error {
	return structuralErrorf("%s is not allowed in verified code", ins.Op)
}
