// Package npy reads and writes one-dimensional float arrays in the NumPy
// .npy format.
package npy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/franz/audioset-prep/internal/util"
)

var magic = []byte("\x93NUMPY")

// ErrFormat is returned for files this package cannot decode
var ErrFormat = errors.New("npy: unsupported format")

var (
	descrRe = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	shapeRe = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// Write stores data as a little-endian float32 vector
func Write(w io.Writer, data []float32) error {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d,), }", len(data))
	// magic(6) + version(2) + length(2) + header + '\n', padded to 64 bytes
	pad := 64 - (10+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.Write(magic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)

	buf := make([]byte, 4)
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// maxHeader bounds the header of a 1-D float array; real ones are under 128 bytes
const maxHeader = 1 << 16

// chunk is the most elements Read allocates ahead of the data it has seen
const chunk = 1 << 16

// Read decodes a 1-D '<f4' or '<f8' array. Doubles are narrowed to float32.
func Read(r io.Reader) ([]float32, error) {
	return decode(r, -1)
}

// decode reads an array from r. size is the total stream length, or -1 when
// unknown; a known size lets the element count be checked before allocating.
func decode(r io.Reader, size int64) ([]float32, error) {
	br := bufio.NewReader(r)

	pre := make([]byte, 8)
	if _, err := io.ReadFull(br, pre); err != nil {
		return nil, fmt.Errorf("%w: short preamble", ErrFormat)
	}
	if !bytes.Equal(pre[:6], magic) {
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}

	var headerLen, preamble int
	switch pre[6] {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		headerLen, preamble = int(n), 10
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		headerLen, preamble = int(n), 12
	default:
		return nil, fmt.Errorf("%w: version %d.%d", ErrFormat, pre[6], pre[7])
	}
	if headerLen > maxHeader {
		return nil, fmt.Errorf("%w: header length %d", ErrFormat, headerLen)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrFormat)
	}
	descr, n, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}

	itemSize := 4
	if descr == "<f8" {
		itemSize = 8
	}
	if size >= 0 {
		body := size - int64(preamble+headerLen)
		if body < 0 || int64(n) > body/int64(itemSize) {
			return nil, fmt.Errorf("%w: shape (%d,) needs %d-byte items, only %d bytes of data", ErrFormat, n, itemSize, max(body, 0))
		}
	}

	data := make([]float32, 0, min(n, chunk))
	buf := make([]byte, itemSize)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: truncated at element %d", ErrFormat, i)
		}
		if itemSize == 4 {
			data = append(data, math.Float32frombits(binary.LittleEndian.Uint32(buf)))
		} else {
			data = append(data, float32(math.Float64frombits(binary.LittleEndian.Uint64(buf))))
		}
	}
	return data, nil
}

func parseHeader(h string) (descr string, n int, err error) {
	m := descrRe.FindStringSubmatch(h)
	if m == nil {
		return "", 0, fmt.Errorf("%w: no descr", ErrFormat)
	}
	descr = m[1]
	if descr != "<f4" && descr != "<f8" {
		return "", 0, fmt.Errorf("%w: dtype %s", ErrFormat, descr)
	}

	// fortran_order is irrelevant for a vector
	m = shapeRe.FindStringSubmatch(h)
	if m == nil {
		return "", 0, fmt.Errorf("%w: no shape", ErrFormat)
	}
	var dims []string
	for _, d := range strings.Split(m[1], ",") {
		if d = strings.TrimSpace(d); d != "" {
			dims = append(dims, d)
		}
	}
	if len(dims) != 1 {
		return "", 0, fmt.Errorf("%w: %d-D array", ErrFormat, len(dims))
	}
	n, err = strconv.Atoi(dims[0])
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("%w: shape %q", ErrFormat, m[1])
	}
	return descr, n, nil
}

// Load reads the array stored at path
func Load(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	data, err := decode(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// Save writes data to path atomically
func Save(path string, data []float32) error {
	var buf bytes.Buffer
	buf.Grow(128 + 4*len(data))
	if err := Write(&buf, data); err != nil {
		return err
	}
	return util.WriteFileAtomic(path, buf.Bytes())
}
