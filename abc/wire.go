package abc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Archives are untrusted input, so decoding is bounded.
const (
	maxArrayElements = 1 << 20
	maxMapPairs      = 1 << 16
	maxNestedLevels  = 16
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

// ErrEmptyArchive is returned when decoding zero bytes.
var ErrEmptyArchive = errors.New("abc: empty archive")

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("abc: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		MaxArrayElements: maxArrayElements,
		MaxMapPairs:      maxMapPairs,
		MaxNestedLevels:  maxNestedLevels,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("abc: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// Marshal serializes an archive to canonical CBOR.
func Marshal(f *File) ([]byte, error) {
	data, err := cborEncMode.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("abc: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes an archive from CBOR bytes.
func Unmarshal(data []byte) (*File, error) {
	if len(data) == 0 {
		return nil, ErrEmptyArchive
	}
	var f File
	if err := cborDecMode.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("abc: unmarshal: %w", err)
	}
	return &f, nil
}

// Read decodes an archive from r.
func Read(r io.Reader) (*File, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("abc: read: %w", err)
	}
	return Unmarshal(buf.Bytes())
}

// ReadFile decodes the archive stored at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("abc: cannot read %s: %w", path, err)
	}
	f, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// WriteFile encodes f and writes it to path.
func WriteFile(path string, f *File) error {
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("abc: cannot write %s: %w", path, err)
	}
	return nil
}
