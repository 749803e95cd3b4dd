package npy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, []float32{1, 2, 3}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	b := buf.Bytes()

	if !bytes.Equal(b[:6], magic) || b[6] != 1 || b[7] != 0 {
		t.Fatalf("bad preamble % x", b[:8])
	}
	hlen := int(binary.LittleEndian.Uint16(b[8:10]))
	if (10+hlen)%64 != 0 {
		t.Errorf("data offset %d not 64-byte aligned", 10+hlen)
	}
	header := string(b[10 : 10+hlen])
	if header[len(header)-1] != '\n' {
		t.Error("header must end in newline")
	}
	if len(b) != 10+hlen+12 {
		t.Errorf("expected %d bytes, got %d", 10+hlen+12, len(b))
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.npy")
	want := []float32{0, -1, 0.5, float32(math.Pi), 1e-7}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestReadEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatal(err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty array, got %d elements", len(got))
	}
}

// encode builds a v1 file by hand with an arbitrary header
func encode(header string, payload []byte) []byte {
	var b bytes.Buffer
	b.Write(magic)
	b.Write([]byte{1, 0})
	binary.Write(&b, binary.LittleEndian, uint16(len(header)))
	b.WriteString(header)
	b.Write(payload)
	return b.Bytes()
}

func TestReadFloat64(t *testing.T) {
	payload := make([]byte, 16)
	binary.LittleEndian.PutUint64(payload[0:], math.Float64bits(0.25))
	binary.LittleEndian.PutUint64(payload[8:], math.Float64bits(-2))
	data := encode("{'descr': '<f8', 'fortran_order': False, 'shape': (2,), }\n", payload)

	got, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if diff := cmp.Diff([]float32{0.25, -2}, got); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"bad magic", []byte("NOTNUMPY\x00\x00")},
		{"int dtype", encode("{'descr': '<i2', 'fortran_order': False, 'shape': (1,), }\n", []byte{0, 0})},
		{"big endian", encode("{'descr': '>f4', 'fortran_order': False, 'shape': (1,), }\n", make([]byte, 4))},
		{"two dimensions", encode("{'descr': '<f4', 'fortran_order': False, 'shape': (2, 2), }\n", make([]byte, 16))},
		{"truncated data", encode("{'descr': '<f4', 'fortran_order': False, 'shape': (4,), }\n", make([]byte, 8))},
		{"huge shape", encode("{'descr': '<f4', 'fortran_order': False, 'shape': (4611686018427387904,), }\n", make([]byte, 8))},
		{"version 9", append(append([]byte{}, magic...), 9, 0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrFormat) {
				t.Errorf("expected ErrFormat, got %v", err)
			}
		})
	}
}

func TestLoadRejectsShapeLargerThanFile(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"huge shape", encode("{'descr': '<f4', 'fortran_order': False, 'shape': (4611686018427387904,), }\n", make([]byte, 8))},
		{"huge f8 shape", encode("{'descr': '<f8', 'fortran_order': False, 'shape': (9223372036854775807,), }\n", nil)},
		{"truncated data", encode("{'descr': '<f4', 'fortran_order': False, 'shape': (160000,), }\n", make([]byte, 4*159999))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.npy")
			if err := os.WriteFile(path, tt.data, 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); !errors.Is(err, ErrFormat) {
				t.Errorf("expected ErrFormat, got %v", err)
			}
		})
	}
}
