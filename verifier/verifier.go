// Package verifier checks that a method body is type-safe and structurally
// sound by abstract interpretation over its basic-block graph.
//
// A Verifier simulates each reachable block on a frame of verification
// types, merging the resulting frames into successors and exception
// handlers until nothing changes. The first violated rule aborts the run
// with a *VerifyError. Missing class hierarchy data never fails a method:
// the affected check assumes compatibility and logs a warning.
package verifier

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/bcverify/bytecode"
	"github.com/chazu/bcverify/hierarchy"
)

// Verifier checks one method. It is not safe for concurrent use; verify
// methods in parallel with one Verifier each.
type Verifier struct {
	method *bytecode.Method
	code   *bytecode.Graph
	types  *TypeTable
	log    commonlog.Logger

	returnType Type
	thisUninit bool // constructor whose receiver starts uninitialized

	frames     []*Frame // entry frame per block, nil until reached
	queued     []bool
	work       []bytecode.BlockID
	subs       map[bytecode.BlockID]*subroutineInfo
	callFrames map[bytecode.BlockID]*Frame // caller frame keyed by return-to block

	simulations int
	done        bool
	err         error
}

// New creates a verifier for m resolving classes through classes.
func New(m *bytecode.Method, classes hierarchy.Resolver) *Verifier {
	log := commonlog.GetLogger("bcverify.verifier")
	v := &Verifier{
		method:     m,
		code:       m.Code,
		types:      NewTypeTable(classes, log),
		log:        log,
		subs:       make(map[bytecode.BlockID]*subroutineInfo),
		callFrames: make(map[bytecode.BlockID]*Frame),
	}
	if v.code != nil {
		v.frames = make([]*Frame, len(v.code.Blocks))
		v.queued = make([]bool, len(v.code.Blocks))
	}
	return v
}

// Verify checks m in a fresh Verifier.
func Verify(m *bytecode.Method, classes hierarchy.Resolver) error {
	return New(m, classes).Verify()
}

// SetLogger replaces the logger for this verifier and its type table.
func (v *Verifier) SetLogger(log commonlog.Logger) {
	v.log = log
	v.types.log = log
}

// Method returns the method being verified.
func (v *Verifier) Method() *bytecode.Method { return v.method }

// Types returns the run's type table.
func (v *Verifier) Types() *TypeTable { return v.types }

// Simulations returns the number of block simulations performed.
func (v *Verifier) Simulations() int { return v.simulations }

// Verify runs the analysis. It returns nil when the method is valid and a
// *VerifyError otherwise. Repeated calls return the first result.
func (v *Verifier) Verify() error {
	if v.done {
		return v.err
	}
	v.done = true
	err := v.run()
	if err != nil {
		var ve *VerifyError
		if !errors.As(err, &ve) {
			ve = locate(err, bytecode.NoBlock, nil, nil)
		}
		ve.Method = v.method.String()
		v.err = ve
		v.log.Infof("%s failed verification: %s", v.method, ve.Message)
		return v.err
	}
	v.log.Infof("%s verified in %d block simulations", v.method, v.simulations)
	return nil
}

func (v *Verifier) run() error {
	if v.code == nil || len(v.code.Blocks) == 0 {
		return nil
	}
	if v.method.MaxStack < 0 || v.method.MaxLocals < 0 {
		return structuralErrorf("negative frame size: max stack %d, max locals %d", v.method.MaxStack, v.method.MaxLocals)
	}
	if err := v.code.Validate(); err != nil {
		return structuralErrorf("%v", err)
	}
	entry, err := v.entryFrame()
	if err != nil {
		return err
	}
	if err := v.mergeInto(0, entry); err != nil {
		return err
	}
	for len(v.work) > 0 {
		id := v.work[0]
		v.work = v.work[1:]
		v.queued[id] = false
		if err := v.simulate(id); err != nil {
			return err
		}
	}
	return nil
}

// entryFrame builds the frame at method entry from the descriptor.
func (v *Verifier) entryFrame() (*Frame, error) {
	m := v.method
	mt, err := v.types.Method(m.Descriptor)
	if err != nil {
		return nil, structuralErrorf("method descriptor: %v", err)
	}
	v.returnType = mt.Return

	f := NewFrame(m.MaxStack, m.MaxLocals)
	slot := 0
	set := func(t Type) error {
		width := 1
		if t.IsWide() {
			width = 2
		}
		if slot+width > m.MaxLocals {
			return structuralErrorf("max locals %d too small for the parameters of %s", m.MaxLocals, m.Descriptor)
		}
		if err := f.SetLocal(slot, t); err != nil {
			return err
		}
		slot += width
		return nil
	}
	if !m.Static {
		if m.Class == "" || m.Class[0] == '[' {
			return nil, structuralErrorf("instance method without a declaring class")
		}
		this := ObjectType(m.Class)
		if m.IsConstructor() && m.Class != hierarchy.ObjectClass {
			this = UninitThis(m.Class)
			v.thisUninit = true
		}
		if err := set(this); err != nil {
			return nil, err
		}
	}
	for _, p := range mt.Params {
		if err := set(p); err != nil {
			return nil, err
		}
	}
	f.writes = 0
	return f, nil
}

func (v *Verifier) enqueue(id bytecode.BlockID) {
	if !v.queued[id] {
		v.queued[id] = true
		v.work = append(v.work, id)
	}
}

// mergeInto joins f into the entry frame of block id, queueing the block
// if its entry frame changed.
func (v *Verifier) mergeInto(id bytecode.BlockID, f *Frame) error {
	cur := v.frames[id]
	if cur == nil {
		v.frames[id] = f.Clone()
		v.enqueue(id)
		return nil
	}
	changed, err := cur.merge(v.types, f, v.enclosing)
	if err != nil {
		return err
	}
	if changed {
		if v.log.AllowLevel(commonlog.Debug) {
			v.log.Debugf("%s: entry frame widened to %s", id, cur)
		}
		v.enqueue(id)
	}
	return nil
}

// enclosing returns the subroutine active where id is called, or NoBlock.
func (v *Verifier) enclosing(id bytecode.BlockID) bytecode.BlockID {
	if info, ok := v.subs[id]; ok {
		return info.enclosing
	}
	return bytecode.NoBlock
}

// mergeHandlers propagates f to every handler guarding the block.
func (v *Verifier) mergeHandlers(handlers []bytecode.Handler, f *Frame) error {
	for _, h := range handlers {
		exc := throwableType
		if h.CatchType != "" {
			if h.CatchType[0] == '[' {
				return structuralErrorf("catch type %s is an array", h.CatchType)
			}
			exc = ObjectType(h.CatchType)
			if !v.types.IsSubtypeOf(exc, throwableType) {
				return typeErrorf("catch type %s is not a throwable", h.CatchType)
			}
		}
		hf, err := f.handlerFrame(exc)
		if err != nil {
			return err
		}
		if err := v.mergeInto(h.Catcher, hf); err != nil {
			return err
		}
	}
	return nil
}

// simulate runs block id from its entry frame and propagates the result.
func (v *Verifier) simulate(id bytecode.BlockID) error {
	v.simulations++
	b := v.code.Blocks[id]
	f := v.frames[id].Clone()
	if v.log.AllowLevel(commonlog.Debug) {
		v.log.Debugf("simulating %s from %s", id, f)
	}

	handlers := v.code.HandlersFor(id)
	if err := v.mergeHandlers(handlers, f); err != nil {
		return locate(err, id, nil, f)
	}

	flow := bytecode.FlowNext
	for i := range b.Instructions {
		ins := &b.Instructions[i]
		last := i == len(b.Instructions)-1
		flow = ins.Op.Info().Flow
		if flow != bytecode.FlowNext && !last {
			return locate(structuralErrorf("%s must end its basic block", ins.Op), id, ins, f)
		}
		if flow == bytecode.FlowJsr || flow == bytecode.FlowRet {
			break
		}
		eff := effects[ins.Op]
		if eff == nil {
			return locate(structuralErrorf("undefined opcode %s", ins.Op), id, ins, f)
		}
		writes := f.writes
		if err := eff(v, f, ins); err != nil {
			return locate(err, id, ins, f)
		}
		if len(handlers) > 0 && f.writes != writes {
			if err := v.mergeHandlers(handlers, f); err != nil {
				return locate(err, id, ins, f)
			}
		}
	}
	v.recordModified(f)

	term := b.Terminator()
	var err error
	switch flow {
	case bytecode.FlowReturn, bytecode.FlowThrow:
	case bytecode.FlowJsr:
		err = v.simulateJsr(b, f)
	case bytecode.FlowRet:
		err = v.simulateRet(b, f, term)
	default:
		err = v.propagate(b, f)
	}
	if err != nil {
		return locate(err, id, term, f)
	}
	return nil
}

// propagate merges the block's exit frame into its successors.
func (v *Verifier) propagate(b *bytecode.Block, f *Frame) error {
	if len(b.Successors) == 0 {
		return structuralErrorf("control falls off the end of the method")
	}
	for _, s := range b.Successors {
		if s == bytecode.NoBlock {
			return structuralErrorf("control falls off the end of the method")
		}
		if err := v.mergeInto(s, f); err != nil {
			return err
		}
	}
	return nil
}

// EntryFrames returns a copy of the recorded entry frame of every block,
// nil for blocks never reached.
func (v *Verifier) EntryFrames() []*Frame {
	out := make([]*Frame, len(v.frames))
	for i, f := range v.frames {
		if f != nil {
			out[i] = f.Clone()
		}
	}
	return out
}

// Dump writes the entry frame of every block.
func (v *Verifier) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s\n", v.method); err != nil {
		return err
	}
	for i, f := range v.frames {
		id := bytecode.BlockID(i)
		var err error
		if f == nil {
			_, err = fmt.Fprintf(w, "  %s: unreached\n", id)
		} else {
			_, err = fmt.Fprintf(w, "  %s: %s\n", id, f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func formatInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
