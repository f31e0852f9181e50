package verifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/bcverify/bytecode"
)

// Error categories. Every verification failure wraps exactly one of these.
var (
	ErrStackDiscipline = errors.New("stack discipline violation")
	ErrType            = errors.New("type error")
	ErrStructural      = errors.New("structural error")
)

// VerifyError describes the first rule a method violated.
type VerifyError struct {
	Kind    error // ErrStackDiscipline, ErrType or ErrStructural
	Method  string
	Block   bytecode.BlockID
	Offset  int // -1 when not tied to an instruction
	Op      bytecode.Opcode
	Message string
	Frame   string // working frame at the point of failure, if known
}

func (e *VerifyError) Error() string {
	var b strings.Builder
	if e.Method != "" {
		b.WriteString(e.Method)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Block != bytecode.NoBlock {
		fmt.Fprintf(&b, " in %s", e.Block)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at %d (%s)", e.Offset, e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the error category.
func (e *VerifyError) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *VerifyError {
	return &VerifyError{
		Kind:    kind,
		Block:   bytecode.NoBlock,
		Offset:  -1,
		Message: fmt.Sprintf(format, args...),
	}
}

func stackErrorf(format string, args ...any) error {
	return newError(ErrStackDiscipline, format, args...)
}

func typeErrorf(format string, args ...any) error {
	return newError(ErrType, format, args...)
}

func structuralErrorf(format string, args ...any) error {
	return newError(ErrStructural, format, args...)
}

// locate fills in the position of err if it is not yet set.
func locate(err error, block bytecode.BlockID, ins *bytecode.Instruction, f *Frame) *VerifyError {
	var ve *VerifyError
	if !errors.As(err, &ve) {
		ve = newError(ErrStructural, "%v", err)
	}
	if ve.Block == bytecode.NoBlock {
		ve.Block = block
	}
	if ve.Offset < 0 && ins != nil {
		ve.Offset = ins.Offset
		ve.Op = ins.Op
	}
	if ve.Frame == "" && f != nil {
		ve.Frame = f.String()
	}
	return ve
}
