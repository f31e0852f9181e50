package bytecode

import (
	"errors"
	"fmt"
)

// BlockID indexes a basic block within its Graph.
type BlockID int

// NoBlock marks a successor edge that leaves the method's code: control
// would fall off the end of the instruction stream.
const NoBlock BlockID = -1

func (id BlockID) String() string {
	if id == NoBlock {
		return "B<none>"
	}
	return fmt.Sprintf("B%d", int(id))
}

// Block is a basic block: a straight-line instruction sequence entered only
// at its first instruction.
//
// Successor arity depends on the terminator: one for goto and plain
// fallthrough, two for conditional branches (target, fallthrough), two for
// jsr (subroutine entry, return-to block), one per case for switches, none
// for returns, athrow and ret.
type Block struct {
	ID           BlockID       `cbor:"1,keyasint"`
	Instructions []Instruction `cbor:"2,keyasint"`
	Successors   []BlockID     `cbor:"3,keyasint,omitempty"`
}

// Terminator returns the last instruction of the block, or nil if empty.
func (b *Block) Terminator() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return &b.Instructions[len(b.Instructions)-1]
}

// Flow returns how control leaves the block.
func (b *Block) Flow() Flow {
	if t := b.Terminator(); t != nil {
		return t.Op.Info().Flow
	}
	return FlowNext
}

// Handler is one exception table entry expressed over blocks. Blocks with
// ids in [Start, End) are guarded.
type Handler struct {
	Start     BlockID `cbor:"1,keyasint"`
	End       BlockID `cbor:"2,keyasint"`
	CatchType string  `cbor:"3,keyasint,omitempty"` // internal class name; empty catches anything
	Catcher   BlockID `cbor:"4,keyasint"`
}

// Guards reports whether the handler protects the given block.
func (h *Handler) Guards(id BlockID) bool {
	return id >= h.Start && id < h.End
}

// Graph is the basic-block graph of one method body. Blocks[0] is the
// entry block.
type Graph struct {
	Blocks   []*Block  `cbor:"1,keyasint"`
	Handlers []Handler `cbor:"2,keyasint,omitempty"`
}

// ErrMalformedGraph is returned by Validate for structurally broken graphs.
var ErrMalformedGraph = errors.New("malformed block graph")

// Block returns the block with the given id, or nil if out of range.
func (g *Graph) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(g.Blocks) {
		return nil
	}
	return g.Blocks[id]
}

// HandlersFor returns the handlers guarding the given block, in table order.
func (g *Graph) HandlersFor(id BlockID) []Handler {
	var hs []Handler
	for _, h := range g.Handlers {
		if h.Guards(id) {
			hs = append(hs, h)
		}
	}
	return hs
}

// Validate checks that block ids are dense and every edge names a block
// in the graph. It does not check the instructions themselves.
func (g *Graph) Validate() error {
	for i, b := range g.Blocks {
		if b == nil {
			return fmt.Errorf("%w: block %d is nil", ErrMalformedGraph, i)
		}
		if b.ID != BlockID(i) {
			return fmt.Errorf("%w: block at index %d has id %d", ErrMalformedGraph, i, b.ID)
		}
		for _, s := range b.Successors {
			if s != NoBlock && g.Block(s) == nil {
				return fmt.Errorf("%w: %s has successor %s out of range", ErrMalformedGraph, b.ID, s)
			}
		}
		switch b.Flow() {
		case FlowJsr:
			if len(b.Successors) != 2 {
				return fmt.Errorf("%w: %s ends in jsr with %d successors", ErrMalformedGraph, b.ID, len(b.Successors))
			}
		case FlowBranch:
			if len(b.Successors) != 2 {
				return fmt.Errorf("%w: %s ends in a branch with %d successors", ErrMalformedGraph, b.ID, len(b.Successors))
			}
		}
	}
	for i, h := range g.Handlers {
		if h.Start < 0 || h.End < h.Start || int(h.End) > len(g.Blocks) {
			return fmt.Errorf("%w: handler %d has bad range [%d,%d)", ErrMalformedGraph, i, h.Start, h.End)
		}
		if g.Block(h.Catcher) == nil {
			return fmt.Errorf("%w: handler %d catcher %s out of range", ErrMalformedGraph, i, h.Catcher)
		}
	}
	return nil
}

// Method is the unit of verification: metadata plus the code graph.
type Method struct {
	Class      string `cbor:"1,keyasint"` // declaring class, internal name
	Name       string `cbor:"2,keyasint"`
	Descriptor string `cbor:"3,keyasint"`
	Static     bool   `cbor:"4,keyasint,omitempty"`
	MaxStack   int    `cbor:"5,keyasint"`
	MaxLocals  int    `cbor:"6,keyasint"`
	Code       *Graph `cbor:"7,keyasint,omitempty"`
}

// IsConstructor reports whether the method is an instance initializer.
func (m *Method) IsConstructor() bool {
	return m.Name == "<init>"
}

func (m *Method) String() string {
	return m.Class + "." + m.Name + m.Descriptor
}
