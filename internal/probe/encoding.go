package probe

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names reported by DetectEncoding for the fixed cases.
const (
	NameUTF8     = "UTF-8"
	NameFallback = "ISO-8859-1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Encoding is a detected text encoding.
type Encoding struct {
	// Name is the charset name, e.g. "UTF-8" or "windows-1252".
	Name string
	// Confidence is the detector confidence (0..100). Byte-order marks and
	// valid UTF-8 report 100.
	Confidence int
	// Fallback is set when the permissive single-byte encoding was used
	// because the guess could not be resolved or did not decode cleanly.
	Fallback bool
	// Warning explains a fallback.
	Warning string

	enc encoding.Encoding
}

// Encoding returns the x/text encoding. UTF-8 results use the BOM-aware
// variant, so a leading byte-order mark is consumed while decoding.
func (e Encoding) Encoding() encoding.Encoding {
	if e.enc == nil {
		return unicode.UTF8BOM
	}
	return e.enc
}

// NewReader wraps r with a decoder producing UTF-8.
func (e Encoding) NewReader(r io.Reader) io.Reader {
	return transform.NewReader(r, e.Encoding().NewDecoder())
}

// Decode converts b to a UTF-8 string.
func (e Encoding) Decode(b []byte) (string, error) {
	out, err := e.Encoding().NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func utf8Encoding(confidence int) Encoding {
	return Encoding{Name: NameUTF8, Confidence: confidence, enc: unicode.UTF8BOM}
}

func fallbackEncoding(reason string) Encoding {
	return Encoding{Name: NameFallback, Fallback: true, Warning: reason, enc: charmap.ISO8859_1}
}

// DetectEncoding guesses the text encoding of a byte sample.
//
// Order of checks:
//   - a UTF-8 byte-order mark, or a sample that is valid UTF-8, is UTF-8;
//   - otherwise chardet's best guess is used, with any UTF-8 report mapped to
//     the BOM-aware variant and other names resolved via the IANA then WHATWG
//     indexes;
//   - an unresolvable name, a detector error, or a guess that introduces
//     U+FFFD when decoding the sample falls back to ISO-8859-1, which maps
//     every byte and never fails.
func DetectEncoding(sample []byte) Encoding {
	if len(sample) == 0 || bytes.HasPrefix(sample, utf8BOM) || utf8.Valid(trimPartialRune(sample)) {
		return utf8Encoding(100)
	}

	res, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || res == nil || res.Charset == "" {
		return fallbackEncoding("charset detection failed")
	}

	name := res.Charset
	if strings.HasPrefix(strings.ToLower(name), "utf-8") {
		return utf8Encoding(res.Confidence)
	}

	enc := lookupEncoding(name)
	if enc == nil {
		return fallbackEncoding("unsupported charset " + name)
	}

	guess := Encoding{Name: name, Confidence: res.Confidence, enc: enc}
	decoded, err := guess.Decode(sample)
	if err != nil {
		return fallbackEncoding("decode as " + name + ": " + err.Error())
	}
	// A trailing U+FFFD is usually a sequence cut by the sample boundary.
	decoded = strings.TrimRight(decoded, "\uFFFD")
	if strings.ContainsRune(decoded, utf8.RuneError) && !bytes.Contains(sample, []byte("\uFFFD")) {
		return fallbackEncoding("sample does not decode cleanly as " + name)
	}
	return guess
}

func lookupEncoding(name string) encoding.Encoding {
	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		return enc
	}
	if enc, err := htmlindex.Get(name); err == nil && enc != nil {
		return enc
	}
	return nil
}
