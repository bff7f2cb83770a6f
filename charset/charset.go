// Package charset decodes Bobcat input files according to the coding key
// of their local-variables line. UTF-8 is the default.
package charset

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/bronger/bobcat/header"
)

// Decode converts raw file bytes to a string using the named encoding.
// Encoding names are the usual IANA labels (“latin-1”, “utf-8”, …).
func Decode(name string, b []byte) (string, error) {
	if name == "" || name == "utf-8" || name == "utf8" {
		if !utf8.Valid(b) {
			return "", fmt.Errorf("input is not valid UTF-8")
		}
		return string(b), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("unknown coding %q", name)
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding as %q: %v", name, err)
	}
	return string(out), nil
}

// DecodeFile decodes a whole Bobcat input file. The coding is taken from
// the file's own local-variables line when present. The line itself is
// read with a byte-transparent decoding first, so any ASCII-compatible
// coding can be declared this way.
func DecodeFile(b []byte) (string, error) {
	firstLine := b
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		firstLine = b[:i]
	}
	// Latin-1 maps every byte to a code point, which is all the sniff
	// needs.
	sniff, _ := charmap.ISO8859_1.NewDecoder().String(string(firstLine))
	vars, ok, err := header.ParseLocalVariables(sniff)
	if err != nil || !ok {
		return Decode("", b)
	}
	return Decode(vars["coding"], b)
}
