package bytecode

import (
	"errors"
	"testing"
)

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		desc   string
		params []string
		ret    string
		slots  int
	}{
		{"()V", nil, "V", 0},
		{"(II)I", []string{"I", "I"}, "I", 2},
		{"(JLjava/lang/String;D)V", []string{"J", "Ljava/lang/String;", "D"}, "V", 5},
		{"([[I[Ljava/lang/Object;)[B", []string{"[[I", "[Ljava/lang/Object;"}, "[B", 2},
		{"(ZBCS)Ljava/lang/Object;", []string{"Z", "B", "C", "S"}, "Ljava/lang/Object;", 4},
	}
	for _, tt := range tests {
		md, err := ParseMethodDescriptor(tt.desc)
		if err != nil {
			t.Errorf("ParseMethodDescriptor(%q): %v", tt.desc, err)
			continue
		}
		if len(md.Params) != len(tt.params) {
			t.Errorf("%q: params = %v, want %v", tt.desc, md.Params, tt.params)
			continue
		}
		for i := range md.Params {
			if md.Params[i] != tt.params[i] {
				t.Errorf("%q: param %d = %q, want %q", tt.desc, i, md.Params[i], tt.params[i])
			}
		}
		if md.Return != tt.ret {
			t.Errorf("%q: return = %q, want %q", tt.desc, md.Return, tt.ret)
		}
		if got := md.SlotCount(); got != tt.slots {
			t.Errorf("%q: SlotCount() = %d, want %d", tt.desc, got, tt.slots)
		}
	}
}

func TestParseMethodDescriptorErrors(t *testing.T) {
	for _, desc := range []string{
		"",
		"V",
		"(I",
		"(I)",
		"(Q)V",
		"(Ljava/lang/String)V",
		"()VV",
		"()II",
		"(V)V",
	} {
		if _, err := ParseMethodDescriptor(desc); !errors.Is(err, ErrBadDescriptor) {
			t.Errorf("ParseMethodDescriptor(%q) error = %v, want ErrBadDescriptor", desc, err)
		}
	}
}

func TestValidateFieldDescriptor(t *testing.T) {
	valid := []string{"I", "J", "Z", "Ljava/lang/Object;", "[I", "[[Ljava/lang/String;"}
	for _, d := range valid {
		if err := ValidateFieldDescriptor(d); err != nil {
			t.Errorf("ValidateFieldDescriptor(%q): %v", d, err)
		}
	}
	invalid := []string{"", "V", "[", "L;", "Ljava/lang/Object", "II", "[V"}
	for _, d := range invalid {
		if err := ValidateFieldDescriptor(d); !errors.Is(err, ErrBadDescriptor) {
			t.Errorf("ValidateFieldDescriptor(%q) error = %v, want ErrBadDescriptor", d, err)
		}
	}
}

func TestIsWideDescriptor(t *testing.T) {
	for d, want := range map[string]bool{"J": true, "D": true, "I": false, "[J": false, "Ljava/lang/Long;": false} {
		if got := IsWideDescriptor(d); got != want {
			t.Errorf("IsWideDescriptor(%q) = %v, want %v", d, got, want)
		}
	}
}
