package bytecode

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadDescriptor is returned for malformed field or method descriptors.
var ErrBadDescriptor = errors.New("malformed descriptor")

// MethodDescriptor is a parsed method descriptor such as
// "(IJLjava/lang/String;)V".
type MethodDescriptor struct {
	Params []string // field descriptors, in declaration order
	Return string   // field descriptor or "V"
}

// ParseMethodDescriptor splits a method descriptor into its parameter and
// return descriptors.
func ParseMethodDescriptor(desc string) (*MethodDescriptor, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, fmt.Errorf("%w: %q: missing '('", ErrBadDescriptor, desc)
	}
	md := &MethodDescriptor{}
	rest := desc[1:]
	for {
		if rest == "" {
			return nil, fmt.Errorf("%w: %q: missing ')'", ErrBadDescriptor, desc)
		}
		if rest[0] == ')' {
			rest = rest[1:]
			break
		}
		n, err := fieldDescriptorLen(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, desc)
		}
		md.Params = append(md.Params, rest[:n])
		rest = rest[n:]
	}
	if rest == "V" {
		md.Return = "V"
		return md, nil
	}
	n, err := fieldDescriptorLen(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, desc)
	}
	if n != len(rest) {
		return nil, fmt.Errorf("%w: %q: trailing characters after return type", ErrBadDescriptor, desc)
	}
	md.Return = rest
	return md, nil
}

// ValidateFieldDescriptor checks that desc is exactly one field descriptor.
func ValidateFieldDescriptor(desc string) error {
	n, err := fieldDescriptorLen(desc)
	if err != nil {
		return fmt.Errorf("%w: %q", err, desc)
	}
	if n != len(desc) {
		return fmt.Errorf("%w: %q: trailing characters", ErrBadDescriptor, desc)
	}
	return nil
}

// fieldDescriptorLen returns the length of the field descriptor at the start
// of s.
func fieldDescriptorLen(s string) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i > 255 {
		return 0, fmt.Errorf("%w: more than 255 array dimensions", ErrBadDescriptor)
	}
	if i == len(s) {
		return 0, fmt.Errorf("%w: truncated", ErrBadDescriptor)
	}
	switch s[i] {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D':
		return i + 1, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end <= 1 {
			return 0, fmt.Errorf("%w: unterminated class name", ErrBadDescriptor)
		}
		return i + end + 1, nil
	default:
		return 0, fmt.Errorf("%w: unexpected %q", ErrBadDescriptor, s[i])
	}
}

// IsWideDescriptor reports whether a value of the given field descriptor
// occupies two slots.
func IsWideDescriptor(desc string) bool {
	return desc == "J" || desc == "D"
}

// SlotCount returns the number of local slots the parameters occupy.
func (md *MethodDescriptor) SlotCount() int {
	n := 0
	for _, p := range md.Params {
		n++
		if IsWideDescriptor(p) {
			n++
		}
	}
	return n
}
