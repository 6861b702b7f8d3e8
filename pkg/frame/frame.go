// Package frame extracts complete top-level JSON objects from a byte stream
// that carries them back to back with no delimiter other than balanced
// braces.
//
// The upstream transport delivers arbitrary fragments: an object may be split
// anywhere, including inside a string literal or in the middle of an escape
// sequence. A Scanner keeps just enough state between fragments to find the
// closing brace of the current object while ignoring braces that appear
// inside quoted strings.
//
// Scanning is done on raw bytes. Every byte that matters to the scanner
// ('{', '}', '"', '\\') is ASCII and can never occur inside a multi-byte
// UTF-8 sequence, so a fragment boundary that splits a multi-byte character
// is harmless: objects are only ever cut at a closing brace, and the partial
// character stays in the carry-over until the rest of it arrives.
package frame

// Scanner is the incremental form of the extractor. The zero value is ready
// to use. A Scanner is not safe for concurrent use; each stream owns one.
type Scanner struct {
	depth    int  // open brace depth, >= 0
	inString bool // inside a quoted string of the current object
	escape   bool // previous byte was a backslash inside a string

	// carry holds the unterminated object, starting at its opening brace.
	// It is empty whenever depth is 0.
	carry []byte
}

// Feed consumes the next fragment and returns the objects completed by it,
// in the order their closing braces appeared. Returned slices are owned by
// the caller.
func (s *Scanner) Feed(chunk []byte) [][]byte {
	var objects [][]byte

	// start is the offset in chunk where the current object began, or -1
	// if it began in an earlier fragment (its prefix then lives in carry).
	start := -1

	for i, c := range chunk {
		if s.depth == 0 {
			// Anything between objects is noise and is dropped.
			if c == '{' {
				s.depth = 1
				s.inString = false
				s.escape = false
				start = i
			}
			continue
		}

		if s.inString {
			switch {
			case s.escape:
				s.escape = false
			case c == '\\':
				s.escape = true
			case c == '"':
				s.inString = false
			}
			continue
		}

		switch c {
		case '"':
			s.inString = true
		case '{':
			s.depth++
		case '}':
			s.depth--
			if s.depth == 0 {
				objects = append(objects, s.complete(chunk, start, i))
				start = -1
			}
		}
	}

	if s.depth > 0 {
		if start >= 0 {
			s.carry = append(s.carry[:0], chunk[start:]...)
		} else {
			s.carry = append(s.carry, chunk...)
		}
	}

	return objects
}

// complete assembles the object that closes at chunk[end].
func (s *Scanner) complete(chunk []byte, start, end int) []byte {
	var obj []byte
	if start >= 0 {
		obj = make([]byte, end-start+1)
		copy(obj, chunk[start:end+1])
	} else {
		obj = make([]byte, 0, len(s.carry)+end+1)
		obj = append(obj, s.carry...)
		obj = append(obj, chunk[:end+1]...)
	}
	s.carry = s.carry[:0]
	return obj
}

// Remainder returns the bytes of the object still waiting for its closing
// brace, or nil when no object is open.
func (s *Scanner) Remainder() []byte {
	if s.depth == 0 || len(s.carry) == 0 {
		return nil
	}
	out := make([]byte, len(s.carry))
	copy(out, s.carry)
	return out
}

// Depth reports the current open brace depth.
func (s *Scanner) Depth() int {
	return s.depth
}

// Reset discards all state.
func (s *Scanner) Reset() {
	*s = Scanner{}
}

// Extract is the stateless form: it scans buf from scratch and returns the
// complete objects plus the remainder that must be prepended to the next
// buffer. Text before an object at depth 0 is dropped. When the scan ends
// inside an object, the remainder starts at that object's opening brace.
func Extract(buf string) (objects []string, remainder string) {
	var s Scanner
	for _, obj := range s.Feed([]byte(buf)) {
		objects = append(objects, string(obj))
	}
	return objects, string(s.Remainder())
}
