package parser

import "io"

// stubLines serves a fixed slice of lines, standing in for a file-backed
// LineSource in parser tests.
type stubLines struct {
	lines []string
	next  int
}

func newStubLines(lines ...string) *stubLines {
	return &stubLines{lines: lines}
}

func (s *stubLines) Next() (string, error) {
	if s.next >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.next]
	s.next++
	return line, nil
}

func (s *stubLines) Close() error { return nil }
