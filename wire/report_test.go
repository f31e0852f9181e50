package wire

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tliron/commonlog"

	"github.com/chazu/bcverify/bytecode"
	"github.com/chazu/bcverify/hierarchy"
	"github.com/chazu/bcverify/verifier"
)

func single(desc string, maxStack int, ops ...bytecode.Opcode) *bytecode.Method {
	b := &bytecode.Block{}
	for i, op := range ops {
		b.Instructions = append(b.Instructions, bytecode.Instruction{Offset: i, Op: op})
	}
	return &bytecode.Method{
		Class: "app/T", Name: "f", Descriptor: desc, Static: true, MaxStack: maxStack,
		Code: &bytecode.Graph{Blocks: []*bytecode.Block{b}},
	}
}

func verify(m *bytecode.Method) (*verifier.Verifier, error) {
	v := verifier.New(m, hierarchy.NewRegistry())
	v.SetLogger(commonlog.MOCK_LOGGER)
	return v, v.Verify()
}

func TestNewReport(t *testing.T) {
	tests := []struct {
		name   string
		m      *bytecode.Method
		kind   string
		block  int
		offset int
	}{
		{"ok", single("()I", 1, bytecode.OpIconst0, bytecode.OpIreturn), "", -1, -1},
		{"stack", single("()V", 2, bytecode.OpLconst0, bytecode.OpPop, bytecode.OpReturn), KindStack, 0, 1},
		{"type", single("()V", 2, bytecode.OpFconst0, bytecode.OpI2l, bytecode.OpReturn), KindType, 0, 1},
		{"structural", single("()I", 0, bytecode.OpReturn), KindStructural, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := verify(tt.m)
			r := NewReport(v, err, false)
			if r.OK != (tt.kind == "") {
				t.Errorf("OK = %v, want %v", r.OK, tt.kind == "")
			}
			if r.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", r.Kind, tt.kind)
			}
			if r.Block != tt.block {
				t.Errorf("Block = %d, want %d", r.Block, tt.block)
			}
			if r.Offset != tt.offset {
				t.Errorf("Offset = %d, want %d", r.Offset, tt.offset)
			}
			if r.Frames != nil {
				t.Errorf("Frames = %v, want none", r.Frames)
			}
		})
	}
}

func TestNewReportFrames(t *testing.T) {
	m := single("()I", 1, bytecode.OpIconst0, bytecode.OpIreturn)
	m.Code.Blocks = append(m.Code.Blocks, &bytecode.Block{ID: 1, Instructions: []bytecode.Instruction{{Offset: 2, Op: bytecode.OpReturn}}})
	m.MaxLocals = 1
	v, err := verify(m)
	r := NewReport(v, err, true)
	want := []FrameDump{
		{Block: 0, Reached: true, Stack: []string{}, Locals: []string{"invalid"}},
		{Block: 1},
	}
	if !reflect.DeepEqual(r.Frames, want) {
		t.Errorf("Frames = %+v, want %+v", r.Frames, want)
	}
	if got := r.String(); got != "app/T.f()I: ok" {
		t.Errorf("String() = %q", got)
	}
}

func TestReportVerdict(t *testing.T) {
	v, err := verify(single("()I", 0, bytecode.OpReturn))
	r := NewReport(v, err, false)
	r.Missing = []string{"app/Gone"}
	got := FromVerdict(r.Method, r.Verdict())
	if !got.Cached || got.OK || got.Kind != KindStructural || got.Error != r.Error {
		t.Errorf("FromVerdict() = %+v", got)
	}
	if !reflect.DeepEqual(got.Missing, r.Missing) {
		t.Errorf("Missing = %v, want %v", got.Missing, r.Missing)
	}
	if !strings.HasPrefix(got.String(), "app/T.f()I: structural error: ") {
		t.Errorf("String() = %q", got.String())
	}
}

func TestReportsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.cbor")
	reports := []*Report{
		{Method: "a/B.c()V", OK: true, Block: -1, Offset: -1, Run: "run_1"},
		{Method: "a/B.d()V", Kind: KindType, Error: "boom", Block: 2, Offset: 7, Missing: []string{"x/Y"}},
	}
	if err := WriteReports(path, reports); err != nil {
		t.Fatalf("WriteReports() error = %v", err)
	}
	got, err := ReadReports(path)
	if err != nil {
		t.Fatalf("ReadReports() error = %v", err)
	}
	if !reflect.DeepEqual(got, reports) {
		t.Errorf("ReadReports() = %+v, want %+v", got, reports)
	}

	data, err := MarshalReport(reports[1])
	if err != nil {
		t.Fatalf("MarshalReport() error = %v", err)
	}
	one, err := UnmarshalReport(data)
	if err != nil {
		t.Fatalf("UnmarshalReport() error = %v", err)
	}
	if !reflect.DeepEqual(one, reports[1]) {
		t.Errorf("UnmarshalReport() = %+v, want %+v", one, reports[1])
	}
}
