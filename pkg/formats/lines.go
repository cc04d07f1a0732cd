package formats

import (
	"bufio"
	"errors"
	"io"
)

// maxLineSize bounds a single OBJ/MTL/3d line.
const maxLineSize = 1 << 20

// lineScanner reads text lines like bufio.Scanner, except that a line longer
// than maxLineSize is consumed and flagged by TooLong instead of ending the
// scan.
type lineScanner struct {
	r    *bufio.Reader
	line []byte
	n    int
	long bool
	err  error
}

func newLineScanner(r io.Reader) *lineScanner {
	return &lineScanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Scan advances to the next line and reports whether there is one.
func (s *lineScanner) Scan() bool {
	s.line = s.line[:0]
	s.long = false

	started := false
	for {
		chunk, isPrefix, err := s.r.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
				return false
			}
			if started {
				s.n++
				return true
			}
			return false
		}
		started = true

		if !s.long {
			if len(s.line)+len(chunk) > maxLineSize {
				s.long = true
				s.line = s.line[:0]
			} else {
				s.line = append(s.line, chunk...)
			}
		}
		if !isPrefix {
			s.n++
			return true
		}
	}
}

// Text returns the current line without its terminator. It is empty for a
// line flagged by TooLong.
func (s *lineScanner) Text() string {
	return string(s.line)
}

// Line returns the 1-based number of the current line.
func (s *lineScanner) Line() int {
	return s.n
}

// TooLong reports whether the current line exceeded maxLineSize.
func (s *lineScanner) TooLong() bool {
	return s.long
}

// Err returns the first read error other than io.EOF.
func (s *lineScanner) Err() error {
	return s.err
}
