// Package textenc resolves raw bytes of a text file into a decoded
// string by trying an ordered chain of encodings. Pinnacle exports come
// from systems of mixed vintage, so a file may be UTF-8, Windows-1252
// or one of the ISO Latin variants; the first encoding that decodes the
// whole byte sequence without substitution wins.
package textenc

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"bin2dicom/pkg/errs"
)

// DefaultChain is the default encoding-attempt order: unicode first,
// then the regional 8-bit encodings seen in the wild. ISO-8859-1 decodes
// any byte sequence, so the default chain cannot fail; a custom chain
// without it can.
var DefaultChain = []string{"utf-8", "windows-1252", "iso-8859-1", "iso-8859-15"}

// Decoder holds a resolved encoding chain. It is pure and safe for
// concurrent use; one Decoder is shared by every text parser.
type Decoder struct {
	names []string
	encs  []encoding.Encoding
}

// NewDecoder resolves the named encodings via the WHATWG index. Unknown
// names are rejected up front rather than surfacing mid-conversion.
func NewDecoder(names ...string) (*Decoder, error) {
	if len(names) == 0 {
		names = DefaultChain
	}
	d := &Decoder{names: names}
	for _, name := range names {
		enc, err := htmlindex.Get(name)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %v", name, err)
		}
		d.encs = append(d.encs, enc)
	}
	return d, nil
}

// Default returns a Decoder over DefaultChain.
func Default() *Decoder {
	d, err := NewDecoder(DefaultChain...)
	if err != nil {
		panic(err) // DefaultChain names are known to the index
	}
	return d
}

// Chain returns the encoding names in attempt order.
func (d *Decoder) Chain() []string { return d.names }

// Decode resolves b into a string using the first encoding in the chain
// that decodes every byte without substitution. path is used only for
// error reporting. Returns *errs.EncodingError when no encoding
// succeeds.
func (d *Decoder) Decode(path string, b []byte) (string, error) {
	for i, enc := range d.encs {
		if strings.EqualFold(d.names[i], "utf-8") {
			if utf8.Valid(b) {
				return string(b), nil
			}
			continue
		}
		out, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			continue
		}
		// The x/text single-byte decoders map undefined bytes to
		// U+FFFD instead of erroring; the presence of a replacement
		// rune means this encoding did not cover the input.
		if strings.ContainsRune(string(out), utf8.RuneError) {
			continue
		}
		return string(out), nil
	}
	return "", &errs.EncodingError{Path: path, Tried: append([]string(nil), d.names...)}
}

// DecodeFile reads path and decodes its contents.
func (d *Decoder) DecodeFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return d.Decode(path, b)
}
