// Package textcheck decides whether text can be handed to the parser: it
// must be valid UTF-8 that converts losslessly into the parser's encoding.
package textcheck

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

var ErrIncompatible = errors.New("text is not encoding-compatible")

// Checker validates text against one target encoding.
type Checker struct {
	name string
	enc  encoding.Encoding // nil means 7-bit ASCII
}

// New returns a checker for the named target encoding ("ascii",
// "iso-8859-1", "windows-1252", ...). Names are IANA names or aliases.
func New(target string) (*Checker, error) {
	name := strings.ToLower(strings.TrimSpace(target))
	switch name {
	case "", "ascii", "us-ascii":
		return &Checker{name: "ascii"}, nil
	case "latin1", "latin-1", "iso-8859-1":
		return &Checker{name: name, enc: charmap.ISO8859_1}, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", target, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q is not supported", target)
	}
	return &Checker{name: name, enc: enc}, nil
}

// Target returns the encoding name the checker converts to.
func (c *Checker) Target() string { return c.name }

// Check returns an error wrapping ErrIncompatible if text is not valid UTF-8
// or contains a character the target encoding cannot represent.
func (c *Checker) Check(text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("invalid utf-8: %w", ErrIncompatible)
	}
	if c.enc == nil {
		for i, r := range text {
			if r >= utf8.RuneSelf {
				return fmt.Errorf("character %q at offset %d not representable in %s: %w", r, i, c.name, ErrIncompatible)
			}
		}
		return nil
	}
	encoded, err := c.enc.NewEncoder().String(text)
	if err != nil {
		return fmt.Errorf("convert to %s: %v: %w", c.name, err, ErrIncompatible)
	}
	decoded, err := c.enc.NewDecoder().String(encoded)
	if err != nil || decoded != text {
		return fmt.Errorf("conversion to %s is lossy: %w", c.name, ErrIncompatible)
	}
	return nil
}

// CheckAll checks each string in turn.
func (c *Checker) CheckAll(texts ...string) error {
	for _, t := range texts {
		if err := c.Check(t); err != nil {
			return err
		}
	}
	return nil
}
