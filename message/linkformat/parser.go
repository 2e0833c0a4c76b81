// Package linkformat parses CoRE Link Format documents (RFC 6690).
package linkformat

import (
	"bytes"
)

type scanner struct {
	data []byte
	pos  int
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.data)
}

func (s *scanner) peek() byte {
	return s.data[s.pos]
}

func (s *scanner) skipSpace() {
	for !s.eof() {
		switch s.peek() {
		case ' ', '\t', '\r', '\n':
			s.pos++
		default:
			return
		}
	}
}

// skipEntry moves past the next ',' that is not inside a quoted string.
// It returns false when the input ends inside quotes.
func (s *scanner) skipEntry() bool {
	quoted := false
	for !s.eof() {
		c := s.peek()
		s.pos++
		switch {
		case quoted && c == '\\':
			s.pos++
		case c == '"':
			quoted = !quoted
		case !quoted && c == ',':
			return true
		}
	}
	return !quoted
}

// readQuoted reads a quoted-string; the opening quote is already consumed.
func (s *scanner) readQuoted() (string, bool) {
	var b bytes.Buffer
	for !s.eof() {
		c := s.peek()
		s.pos++
		switch c {
		case '\\':
			if s.eof() {
				return "", false
			}
			b.WriteByte(s.peek())
			s.pos++
		case '"':
			return b.String(), true
		default:
			b.WriteByte(c)
		}
	}
	return "", false
}

func (s *scanner) readUntil(stop string) string {
	start := s.pos
	for !s.eof() && bytes.IndexByte([]byte(stop), s.peek()) < 0 {
		s.pos++
	}
	return string(bytes.TrimSpace(s.data[start:s.pos]))
}

type entryResult int

const (
	entryOK entryResult = iota
	entryMalformed
	entryTruncated
)

func (s *scanner) parseEntry() (Resource, entryResult) {
	s.skipSpace()
	if s.eof() || s.peek() != '<' {
		return Resource{}, entryMalformed
	}
	s.pos++
	end := bytes.IndexByte(s.data[s.pos:], '>')
	if end < 0 {
		return Resource{}, entryTruncated
	}
	r := Resource{
		Path:       string(s.data[s.pos : s.pos+end]),
		Attributes: make(map[string]string),
	}
	s.pos += end + 1
	for {
		s.skipSpace()
		if s.eof() {
			return r, entryOK
		}
		switch s.peek() {
		case ',':
			s.pos++
			return r, entryOK
		case ';':
			s.pos++
		default:
			return r, entryMalformed
		}
		name := s.readUntil("=;,")
		if name == "" {
			return r, entryMalformed
		}
		var value string
		if !s.eof() && s.peek() == '=' {
			s.pos++
			s.skipSpace()
			if !s.eof() && s.peek() == '"' {
				s.pos++
				v, ok := s.readQuoted()
				if !ok {
					return r, entryTruncated
				}
				value = v
			} else {
				value = s.readUntil(";,")
			}
		}
		if _, dup := r.Attributes[name]; !dup {
			r.Attributes[name] = value
		}
	}
}

// Parse returns the resources of a link-format document. Malformed entries
// are skipped; parsing stops at truncated input and returns what was read so far.
func Parse(data []byte) []Resource {
	s := scanner{data: data}
	var resources []Resource
	for {
		s.skipSpace()
		if s.eof() {
			return resources
		}
		start := s.pos
		r, res := s.parseEntry()
		switch res {
		case entryOK:
			resources = append(resources, r)
		case entryMalformed:
			s.pos = start
			if !s.skipEntry() {
				return resources
			}
		case entryTruncated:
			return resources
		}
	}
}
