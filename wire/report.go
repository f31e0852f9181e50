package wire

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/bcverify/bytecode"
	"github.com/chazu/bcverify/hierarchy"
	"github.com/chazu/bcverify/verifier"
)

// Error kinds as they appear in reports and the verdict cache.
const (
	KindStack      = "stack"
	KindType       = "type"
	KindStructural = "structural"
)

// Report is the outcome of verifying one method.
type Report struct {
	Method  string      `cbor:"1,keyasint"`
	OK      bool        `cbor:"2,keyasint"`
	Kind    string      `cbor:"3,keyasint,omitempty"`
	Error   string      `cbor:"4,keyasint,omitempty"`
	Block   int         `cbor:"5,keyasint"`
	Offset  int         `cbor:"6,keyasint"`
	Frame   string      `cbor:"7,keyasint,omitempty"` // working frame at the failure
	Frames  []FrameDump `cbor:"8,keyasint,omitempty"` // entry frames, on request
	Missing []string    `cbor:"9,keyasint,omitempty"` // classes assumed compatible
	Cached  bool        `cbor:"10,keyasint,omitempty"`
	Run     string      `cbor:"11,keyasint,omitempty"` // id of the batch run that produced it
}

// FrameDump is the recorded entry frame of one block.
type FrameDump struct {
	Block   int      `cbor:"1,keyasint"`
	Reached bool     `cbor:"2,keyasint"`
	Stack   []string `cbor:"3,keyasint,omitempty"`
	Locals  []string `cbor:"4,keyasint,omitempty"`
}

// ErrorKind names the category of a verification error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, verifier.ErrStackDiscipline):
		return KindStack
	case errors.Is(err, verifier.ErrType):
		return KindType
	default:
		return KindStructural
	}
}

// NewReport describes the result err of running v. With frames set the
// entry frame of every block is included.
func NewReport(v *verifier.Verifier, err error, frames bool) *Report {
	r := &Report{
		Method:  v.Method().String(),
		OK:      err == nil,
		Block:   int(bytecode.NoBlock),
		Offset:  -1,
		Missing: v.Types().Missing(),
	}
	if err != nil {
		r.Kind = ErrorKind(err)
		r.Error = err.Error()
		var ve *verifier.VerifyError
		if errors.As(err, &ve) {
			r.Block = int(ve.Block)
			r.Offset = ve.Offset
			r.Frame = ve.Frame
		}
	}
	if frames {
		for i, f := range v.EntryFrames() {
			d := FrameDump{Block: i, Reached: f != nil}
			if f != nil {
				d.Stack = typeNames(f.Stack())
				d.Locals = typeNames(f.Locals())
			}
			r.Frames = append(r.Frames, d)
		}
	}
	return r
}

// FromVerdict rebuilds a report from a cached verdict.
func FromVerdict(method string, v hierarchy.Verdict) *Report {
	return &Report{
		Method:  method,
		OK:      v.OK,
		Kind:    v.Kind,
		Error:   v.Message,
		Block:   int(bytecode.NoBlock),
		Offset:  -1,
		Missing: v.Missing,
		Cached:  true,
	}
}

// Verdict returns the cacheable part of the report.
func (r *Report) Verdict() hierarchy.Verdict {
	return hierarchy.Verdict{OK: r.OK, Kind: r.Kind, Message: r.Error, Missing: r.Missing}
}

func (r *Report) String() string {
	if r.OK {
		return r.Method + ": ok"
	}
	return fmt.Sprintf("%s: %s error: %s", r.Method, r.Kind, r.Error)
}

func typeNames(ts []verifier.Type) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

// MarshalReport serializes a Report to canonical CBOR.
func MarshalReport(r *Report) ([]byte, error) {
	return encMode.Marshal(r)
}

// UnmarshalReport deserializes a Report from CBOR bytes.
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("wire: unmarshal report: %w", err)
	}
	return &r, nil
}

// WriteReports writes reports to path as one CBOR array.
func WriteReports(path string, reports []*Report) error {
	data, err := encMode.Marshal(reports)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// ReadReports loads a file written by WriteReports.
func ReadReports(path string) ([]*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var reports []*Report
	if err := cbor.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("wire: unmarshal reports in %s: %w", path, err)
	}
	return reports, nil
}
