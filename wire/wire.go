// Package wire implements the CBOR encoding of methods and verification
// reports exchanged between bcverify and the tools that produce block
// graphs or consume verdicts.
package wire

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/bcverify/bytecode"
)

// BundleVersion is the current method bundle format version.
const BundleVersion = 1

// ErrBundleVersion is returned for bundles written by an incompatible version.
var ErrBundleVersion = errors.New("unsupported bundle version")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Bundle is a file of methods to verify.
type Bundle struct {
	Version byte               `cbor:"1,keyasint"`
	Methods []*bytecode.Method `cbor:"2,keyasint"`
}

// MarshalMethod serializes a Method to canonical CBOR.
func MarshalMethod(m *bytecode.Method) ([]byte, error) {
	return encMode.Marshal(m)
}

// UnmarshalMethod deserializes a Method from CBOR bytes.
func UnmarshalMethod(data []byte) (*bytecode.Method, error) {
	var m bytecode.Method
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("wire: unmarshal method: %w", err)
	}
	return &m, nil
}

// MethodHash returns the SHA-256 of the method's canonical encoding. Equal
// methods hash equally regardless of how they were produced.
func MethodHash(m *bytecode.Method) ([32]byte, error) {
	data, err := MarshalMethod(m)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// MarshalBundle serializes a Bundle to CBOR bytes.
func MarshalBundle(b *Bundle) ([]byte, error) {
	if b.Version == 0 {
		b.Version = BundleVersion
	}
	return encMode.Marshal(b)
}

// UnmarshalBundle deserializes a Bundle from CBOR bytes.
func UnmarshalBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("wire: unmarshal bundle: %w", err)
	}
	if b.Version != BundleVersion {
		return nil, fmt.Errorf("wire: %w: %d", ErrBundleVersion, b.Version)
	}
	for i, m := range b.Methods {
		if m == nil {
			return nil, fmt.Errorf("wire: bundle method %d is empty", i)
		}
	}
	return &b, nil
}

// ReadBundle loads a bundle file.
func ReadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	b, err := UnmarshalBundle(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// WriteBundle writes methods to a bundle file.
func WriteBundle(path string, methods ...*bytecode.Method) error {
	data, err := MarshalBundle(&Bundle{Version: BundleVersion, Methods: methods})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
