// Package scan locates byte signatures in a target's address space and
// finds code caves next to matched instructions.
package scan

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadPattern = errors.New("bad pattern")

// Pattern is a byte signature. A zero mask byte marks a wildcard position
// that matches any byte.
type Pattern struct {
	Bytes []byte
	Mask  []byte
}

// ParsePattern parses hex byte tokens separated by spaces or commas.
// "?" and "??" are single-byte wildcards.
func ParsePattern(s string) (Pattern, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return Pattern{}, fmt.Errorf("%w: empty", ErrBadPattern)
	}

	p := Pattern{
		Bytes: make([]byte, len(fields)),
		Mask:  make([]byte, len(fields)),
	}
	for i, tok := range fields {
		if tok == "?" || tok == "??" {
			continue
		}
		if len(tok) > 2 {
			return Pattern{}, fmt.Errorf("%w: token %d %q", ErrBadPattern, i, tok)
		}
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: token %d %q", ErrBadPattern, i, tok)
		}
		p.Bytes[i] = byte(v)
		p.Mask[i] = 0xFF
	}
	if p.lead() < 0 {
		return Pattern{}, fmt.Errorf("%w: only wildcards", ErrBadPattern)
	}
	return p, nil
}

func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) Len() int {
	return len(p.Bytes)
}

func (p Pattern) String() string {
	var sb strings.Builder
	for i, b := range p.Bytes {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if p.Mask[i] == 0 {
			sb.WriteString("??")
			continue
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// Index returns the offset of the leftmost match in data, or -1.
func (p Pattern) Index(data []byte) int {
	n := len(p.Bytes)
	lead := p.lead()
	if lead < 0 || len(data) < n {
		return -1
	}
	last := len(data) - n
	for i := 0; i <= last; {
		j := bytes.IndexByte(data[i+lead:last+lead+1], p.Bytes[lead])
		if j < 0 {
			return -1
		}
		i += j
		if p.matchAt(data, i) {
			return i
		}
		i++
	}
	return -1
}

// lead is the first literal position, used to skip ahead with IndexByte.
func (p Pattern) lead() int {
	for i, m := range p.Mask {
		if m != 0 {
			return i
		}
	}
	return -1
}

func (p Pattern) matchAt(data []byte, at int) bool {
	for j, b := range p.Bytes {
		if p.Mask[j] != 0 && data[at+j] != b {
			return false
		}
	}
	return true
}
