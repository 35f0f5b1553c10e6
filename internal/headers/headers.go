package headers

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedHeader     = errors.New("malformed header")
	ErrInvalidHeaderName   = errors.New("invalid character in header name")
	ErrObsoleteLineFolding = errors.New("obsolete line folding not supported")
)

var crlf = []byte("\r\n")

// Field is a single header line. Name keeps the case the peer sent.
type Field struct {
	Name  string
	Value string
}

// Headers is an ordered list of fields with case-insensitive lookups.
type Headers struct {
	fields []Field
}

func NewHeaders() *Headers {
	return &Headers{
		fields: make([]Field, 0, 8),
	}
}

// Get returns the first value for a header
func (h *Headers) Get(key string) (string, bool) {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, key) {
			return f.Value, true
		}
	}
	return "", false
}

// GetAll returns all values for a header, in arrival order
func (h *Headers) GetAll(key string) []string {
	var values []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, key) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Fields returns the fields in insertion order.
func (h *Headers) Fields() []Field {
	return h.fields
}

func (h *Headers) Len() int {
	return len(h.fields)
}

// Set replaces all values for a header. The field keeps the position of
// its first occurrence, or is appended if it did not exist.
func (h *Headers) Set(key, value string) {
	for i, f := range h.fields {
		if strings.EqualFold(f.Name, key) {
			h.fields[i] = Field{Name: key, Value: value}
			h.delFrom(key, i+1)
			return
		}
	}
	h.Add(key, value)
}

// Add appends a value to a header
func (h *Headers) Add(key, value string) {
	h.fields = append(h.fields, Field{Name: key, Value: value})
}

// Del removes a header
func (h *Headers) Del(key string) {
	h.delFrom(key, 0)
}

func (h *Headers) delFrom(key string, start int) {
	kept := h.fields[:start]
	for _, f := range h.fields[start:] {
		if !strings.EqualFold(f.Name, key) {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

// Parse parses field lines from raw bytes. It returns the number of bytes
// consumed and whether the terminating empty line was seen. An incomplete
// trailing line is left unconsumed.
func (h *Headers) Parse(data []byte) (int, bool, error) {
	read := 0
	done := false

	for {
		idx := bytes.Index(data[read:], crlf)
		if idx == -1 {
			// Need more data
			break
		}

		if idx == 0 {
			// Empty line = end of headers
			done = true
			read += 2
			break
		}

		line := data[read : read+idx]

		if line[0] == ' ' || line[0] == '\t' {
			return read, false, ErrObsoleteLineFolding
		}

		name, value, err := parseHeader(line)
		if err != nil {
			return read, false, err
		}

		// Always append - duplicates are the validator's business
		h.Add(name, value)

		read += idx + 2
	}

	return read, done, nil
}

func parseHeader(line []byte) (string, string, error) {
	colonIdx := bytes.IndexByte(line, ':')
	if colonIdx == -1 {
		return "", "", fmt.Errorf("%w: no colon", ErrMalformedHeader)
	}

	name := line[:colonIdx]
	value := line[colonIdx+1:]

	if len(name) == 0 {
		return "", "", fmt.Errorf("%w: empty name", ErrMalformedHeader)
	}

	if bytes.ContainsAny(name, " \t") {
		return "", "", fmt.Errorf("%w: whitespace in name", ErrMalformedHeader)
	}

	for _, b := range name {
		if !IsTokenChar(b) {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidHeaderName, b)
		}
	}

	// OWS around the value is allowed
	value = bytes.Trim(value, " \t")

	return string(name), string(value), nil
}

// IsTokenChar reports whether b is a tchar (RFC 9110 section 5.6.2).
func IsTokenChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') ||
		(b >= 'a' && b <= 'z') ||
		(b >= '0' && b <= '9') ||
		b == '!' || b == '#' || b == '$' || b == '%' || b == '&' ||
		b == '\'' || b == '*' || b == '+' || b == '-' || b == '.' ||
		b == '^' || b == '_' || b == '`' || b == '|' || b == '~'
}

// IsToken reports whether s is a non-empty sequence of tchars.
func IsToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !IsTokenChar(s[i]) {
			return false
		}
	}
	return true
}
