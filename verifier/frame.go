package verifier

import (
	"math/bits"
	"strings"

	"github.com/chazu/bcverify/bytecode"
)

// ---------------------------------------------------------------------------
// localSet: set of local slot indices
// ---------------------------------------------------------------------------

type localSet []uint64

func newLocalSet(n int) localSet {
	return make(localSet, (n+63)/64)
}

func (s localSet) add(i int) {
	s[i/64] |= 1 << (uint(i) % 64)
}

func (s localSet) has(i int) bool {
	if i/64 >= len(s) {
		return false
	}
	return s[i/64]&(1<<(uint(i)%64)) != 0
}

// union adds every member of o and reports whether s grew.
func (s localSet) union(o localSet) bool {
	changed := false
	for i := range o {
		if i >= len(s) {
			break
		}
		if n := s[i] | o[i]; n != s[i] {
			s[i] = n
			changed = true
		}
	}
	return changed
}

func (s localSet) clone() localSet {
	return append(localSet(nil), s...)
}

func (s localSet) members() []int {
	var out []int
	for w, word := range s {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			out = append(out, w*64+b)
			word &^= 1 << uint(b)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Frame
// ---------------------------------------------------------------------------

// subroutineContext identifies the innermost subroutine a frame executes
// in, and the locals written since entering it.
type subroutineContext struct {
	target   bytecode.BlockID
	modified localSet
}

func (c *subroutineContext) clone() *subroutineContext {
	if c == nil {
		return nil
	}
	return &subroutineContext{target: c.target, modified: c.modified.clone()}
}

// Frame is the abstract state at a program point: operand stack and local
// variable types, plus the active subroutine.
type Frame struct {
	stack    []Type
	locals   []Type
	maxStack int
	sub      *subroutineContext

	writes int // local writes, used to refresh handler frames mid-block
}

// NewFrame returns an empty frame with every local unusable.
func NewFrame(maxStack, maxLocals int) *Frame {
	f := &Frame{
		stack:    make([]Type, 0, maxStack),
		locals:   make([]Type, maxLocals),
		maxStack: maxStack,
	}
	for i := range f.locals {
		f.locals[i] = Invalid
	}
	return f
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		stack:    make([]Type, len(f.stack), f.maxStack),
		locals:   make([]Type, len(f.locals)),
		maxStack: f.maxStack,
		sub:      f.sub.clone(),
	}
	copy(c.stack, f.stack)
	copy(c.locals, f.locals)
	return c
}

// Stack returns the operand stack, bottom first. Callers must not modify it.
func (f *Frame) Stack() []Type { return f.stack }

// Locals returns the local variable types. Callers must not modify them.
func (f *Frame) Locals() []Type { return f.locals }

// Height returns the operand stack height in slots.
func (f *Frame) Height() int { return len(f.stack) }

// Subroutine returns the entry block of the innermost active subroutine,
// or NoBlock at top level.
func (f *Frame) Subroutine() bytecode.BlockID {
	if f.sub == nil {
		return bytecode.NoBlock
	}
	return f.sub.target
}

// Push pushes one slot.
func (f *Frame) Push(t Type) error {
	if len(f.stack) >= f.maxStack {
		return stackErrorf("stack overflow: max stack %d exceeded pushing %s", f.maxStack, t)
	}
	f.stack = append(f.stack, t)
	return nil
}

// PushValue pushes t and, for long and double, its second word.
func (f *Frame) PushValue(t Type) error {
	if err := f.Push(t); err != nil {
		return err
	}
	if t.IsWide() {
		return f.Push(SecondWord)
	}
	return nil
}

// Pop removes one slot.
func (f *Frame) Pop() (Type, error) {
	if len(f.stack) == 0 {
		return Invalid, stackErrorf("stack underflow")
	}
	t := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return t, nil
}

// Peek returns the slot depth positions below the top (0 is the top).
func (f *Frame) Peek(depth int) (Type, error) {
	if depth >= len(f.stack) {
		return Invalid, stackErrorf("stack underflow: need %d slots, have %d", depth+1, len(f.stack))
	}
	return f.stack[len(f.stack)-1-depth], nil
}

// checkBoundary fails when a stack operation would cut between the two
// halves of a long or double: the slot depth-1 below the top must not be a
// second word whose lower half lies outside the operated range.
func (f *Frame) checkBoundary(depth int) error {
	if depth > len(f.stack) {
		return stackErrorf("stack underflow: need %d slots, have %d", depth, len(f.stack))
	}
	if f.stack[len(f.stack)-depth] == SecondWord {
		return stackErrorf("operation would split a two-word value %d slots below the top", depth)
	}
	return nil
}

// Local returns the type of local slot i.
func (f *Frame) Local(i int) (Type, error) {
	if i < 0 || i >= len(f.locals) {
		return Invalid, structuralErrorf("local %d out of range (max locals %d)", i, len(f.locals))
	}
	return f.locals[i], nil
}

// SetLocal stores t in slot i (and the second word in i+1 for long and
// double). A store that overwrites half of an existing two-word value
// invalidates the other half.
func (f *Frame) SetLocal(i int, t Type) error {
	width := 1
	if t.IsWide() {
		width = 2
	}
	if i < 0 || i+width > len(f.locals) {
		return structuralErrorf("local %d out of range (max locals %d)", i+width-1, len(f.locals))
	}
	if i > 0 && f.locals[i-1].IsWide() {
		f.locals[i-1] = Invalid
		f.touch(i - 1)
	}
	if last := i + width - 1; f.locals[last].IsWide() && last+1 < len(f.locals) {
		f.locals[last+1] = Invalid
		f.touch(last + 1)
	}
	f.locals[i] = t
	f.touch(i)
	if width == 2 {
		f.locals[i+1] = SecondWord
		f.touch(i + 1)
	}
	return nil
}

func (f *Frame) touch(i int) {
	f.writes++
	if f.sub != nil {
		f.sub.modified.add(i)
	}
}

// repairPairs invalidates local halves whose partner was replaced, as
// happens when a subroutine return overwrites only part of a pair.
func (f *Frame) repairPairs() {
	for i, t := range f.locals {
		switch {
		case t.IsWide() && (i+1 >= len(f.locals) || f.locals[i+1] != SecondWord):
			f.locals[i] = Invalid
		case t == SecondWord && (i == 0 || !f.locals[i-1].IsWide()):
			f.locals[i] = Invalid
		}
	}
}

// ReplaceAll substitutes to for every occurrence of from on the stack and
// in the locals. It is how a constructor call marks all aliases of an
// uninitialized object as initialized.
func (f *Frame) ReplaceAll(from, to Type) {
	for i, t := range f.stack {
		if t == from {
			f.stack[i] = to
		}
	}
	for i, t := range f.locals {
		if t == from {
			f.locals[i] = to
			f.touch(i)
		}
	}
}

// handlerFrame returns the entry frame of an exception handler reached
// from f: same locals and subroutine, stack holding only the exception.
func (f *Frame) handlerFrame(exception Type) (*Frame, error) {
	h := &Frame{
		stack:    make([]Type, 0, f.maxStack),
		locals:   append([]Type(nil), f.locals...),
		maxStack: f.maxStack,
		sub:      f.sub.clone(),
	}
	if err := h.Push(exception); err != nil {
		return nil, err
	}
	return h, nil
}

// merge joins in into f and reports whether f changed. Stack slots that
// have no common type are an error; locals degrade to Invalid. Frames from
// different subroutines join in the innermost subroutine both run inside,
// found by following enclosing links, or at top level.
func (f *Frame) merge(tt *TypeTable, in *Frame, enclosing func(bytecode.BlockID) bytecode.BlockID) (bool, error) {
	if len(f.stack) != len(in.stack) {
		return false, structuralErrorf("stack height mismatch at join: %d and %d", len(f.stack), len(in.stack))
	}
	changed := false
	if cur := f.Subroutine(); cur != in.Subroutine() {
		if common := commonSubroutine(cur, in.Subroutine(), enclosing); common != cur {
			if common == bytecode.NoBlock {
				f.sub = nil
			} else {
				f.sub.target = common
			}
			changed = true
		}
	}
	for i, t := range f.stack {
		m := tt.Merge(t, in.stack[i])
		if m == Invalid {
			return false, typeErrorf("incompatible stack types at join, slot %d: %s and %s", i, t, in.stack[i])
		}
		if m != t {
			f.stack[i] = m
			changed = true
		}
	}
	for i, t := range f.locals {
		if m := tt.Merge(t, in.locals[i]); m != t {
			f.locals[i] = m
			changed = true
		}
	}
	if f.sub != nil && in.sub != nil && f.sub.modified.union(in.sub.modified) {
		changed = true
	}
	return changed, nil
}

// commonSubroutine returns the innermost subroutine on both a's and b's
// enclosing chains, or NoBlock when they only share the top level.
func commonSubroutine(a, b bytecode.BlockID, enclosing func(bytecode.BlockID) bytecode.BlockID) bytecode.BlockID {
	outer := make(map[bytecode.BlockID]bool)
	for s := a; s != bytecode.NoBlock && !outer[s]; s = enclosing(s) {
		outer[s] = true
	}
	seen := make(map[bytecode.BlockID]bool)
	for s := b; s != bytecode.NoBlock && !seen[s]; s = enclosing(s) {
		if outer[s] {
			return s
		}
		seen[s] = true
	}
	return bytecode.NoBlock
}

func (f *Frame) String() string {
	var b strings.Builder
	b.WriteString("stack [")
	writeTypes(&b, f.stack)
	b.WriteString("] locals [")
	writeTypes(&b, f.locals)
	b.WriteString("]")
	if f.sub != nil {
		b.WriteString(" sub ")
		b.WriteString(f.sub.target.String())
		b.WriteString(" modified ")
		b.WriteString(formatInts(f.sub.modified.members()))
	}
	return b.String()
}

func writeTypes(b *strings.Builder, ts []Type) {
	for i, t := range ts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
}
