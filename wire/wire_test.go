package wire

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/chazu/bcverify/bytecode"
)

func sampleMethod() *bytecode.Method {
	return &bytecode.Method{
		Class:      "app/Point",
		Name:       "norm",
		Descriptor: "(J)I",
		Static:     true,
		MaxStack:   2,
		MaxLocals:  2,
		Code: &bytecode.Graph{
			Blocks: []*bytecode.Block{
				{ID: 0, Successors: []bytecode.BlockID{1}, Instructions: []bytecode.Instruction{
					{Offset: 0, Op: bytecode.OpLload0},
					{Offset: 1, Op: bytecode.OpL2i},
					{Offset: 2, Op: bytecode.OpIstore, Local: 1},
					{Offset: 3, Op: bytecode.OpGoto},
				}},
				{ID: 1, Instructions: []bytecode.Instruction{
					{Offset: 4, Op: bytecode.OpIinc, Local: 1, Increment: -3},
					{Offset: 5, Op: bytecode.OpGetstatic, Ref: &bytecode.MemberRef{Owner: "app/Point", Name: "ORIGIN", Descriptor: "Lapp/Point;"}},
					{Offset: 6, Op: bytecode.OpPop},
					{Offset: 7, Op: bytecode.OpLdc, Const: &bytecode.Constant{Kind: bytecode.ConstString, Value: "x"}},
					{Offset: 8, Op: bytecode.OpPop},
					{Offset: 9, Op: bytecode.OpIload1},
					{Offset: 10, Op: bytecode.OpIreturn},
				}},
			},
			Handlers: []bytecode.Handler{{Start: 1, End: 2, CatchType: "java/lang/Exception", Catcher: 1}},
		},
	}
}

func TestMethodRoundTrip(t *testing.T) {
	m := sampleMethod()
	data, err := MarshalMethod(m)
	if err != nil {
		t.Fatalf("MarshalMethod() error = %v", err)
	}
	got, err := UnmarshalMethod(data)
	if err != nil {
		t.Fatalf("UnmarshalMethod() error = %v", err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Errorf("round trip = %+v, want %+v", got, m)
	}
}

func TestMethodHash(t *testing.T) {
	a, err := MethodHash(sampleMethod())
	if err != nil {
		t.Fatalf("MethodHash() error = %v", err)
	}
	b, _ := MethodHash(sampleMethod())
	if a != b {
		t.Error("equal methods hash differently")
	}

	changed := sampleMethod()
	changed.Code.Blocks[1].Instructions[0].Increment = 3
	c, _ := MethodHash(changed)
	if a == c {
		t.Error("different methods hash equally")
	}
}

func TestBundleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "methods.cbor")
	other := sampleMethod()
	other.Name = "other"
	if err := WriteBundle(path, sampleMethod(), other); err != nil {
		t.Fatalf("WriteBundle() error = %v", err)
	}
	b, err := ReadBundle(path)
	if err != nil {
		t.Fatalf("ReadBundle() error = %v", err)
	}
	if b.Version != BundleVersion {
		t.Errorf("Version = %d, want %d", b.Version, BundleVersion)
	}
	if len(b.Methods) != 2 {
		t.Fatalf("len(Methods) = %d, want 2", len(b.Methods))
	}
	if b.Methods[1].Name != "other" {
		t.Errorf("Methods[1].Name = %q, want %q", b.Methods[1].Name, "other")
	}
	if !reflect.DeepEqual(b.Methods[0], sampleMethod()) {
		t.Errorf("Methods[0] = %+v, want %+v", b.Methods[0], sampleMethod())
	}
}

func TestBundleErrors(t *testing.T) {
	data, err := MarshalBundle(&Bundle{Version: 9})
	if err != nil {
		t.Fatalf("MarshalBundle() error = %v", err)
	}
	if _, err := UnmarshalBundle(data); !errors.Is(err, ErrBundleVersion) {
		t.Errorf("UnmarshalBundle(version 9) = %v, want %v", err, ErrBundleVersion)
	}

	data, _ = MarshalBundle(&Bundle{Methods: []*bytecode.Method{nil}})
	if _, err := UnmarshalBundle(data); err == nil {
		t.Error("UnmarshalBundle(nil method) = nil error, want error")
	}

	if _, err := UnmarshalBundle([]byte{0xff, 0x00}); err == nil {
		t.Error("UnmarshalBundle(garbage) = nil error, want error")
	}

	if _, err := ReadBundle(filepath.Join(t.TempDir(), "missing.cbor")); err == nil {
		t.Error("ReadBundle(missing) = nil error, want error")
	}
}
