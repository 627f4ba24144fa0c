package probe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// DefaultSampleBytes bounds how much of a file is inspected.
const DefaultSampleBytes = 64 << 10

// ErrEmptyFile is returned for inputs with no content (zero bytes, or only
// whitespace and byte-order marks once decoded).
var ErrEmptyFile = errors.New("empty file")

// ReadSample reads at most maxBytes from r. If maxBytes <= 0,
// DefaultSampleBytes is used.
func ReadSample(r io.Reader, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultSampleBytes
	}
	lr := &io.LimitedReader{R: r, N: int64(maxBytes)}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, lr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFileSample opens path and samples its prefix. It also reports the file
// size so callers can tell a truncated sample from a whole file.
func ReadFileSample(path string, maxBytes int) (sample []byte, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	if st.IsDir() {
		return nil, 0, fmt.Errorf("%s: is a directory", path)
	}
	if st.Size() == 0 {
		return nil, 0, ErrEmptyFile
	}

	sample, err = ReadSample(f, maxBytes)
	if err != nil {
		return nil, 0, err
	}
	return sample, st.Size(), nil
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off by the sample
// boundary.
func trimPartialRune(b []byte) []byte {
	for k := 1; k <= utf8.UTFMax && k <= len(b); k++ {
		tail := b[len(b)-k:]
		if !utf8.RuneStart(tail[0]) {
			continue
		}
		if !utf8.FullRune(tail) {
			return b[:len(b)-k]
		}
		break
	}
	return b
}

// cutToLastLine drops a trailing partial line from a sample that was cut
// short. Samples that hold the whole file are returned as is.
func cutToLastLine(s string, whole bool) string {
	if whole {
		return s
	}
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return s[:i+1]
		}
	}
	return s
}
