package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Lines yields successive lines from an underlying byte stream. Next
// returns io.EOF once the stream is exhausted. Lines are decoded as UTF-8
// with invalid bytes replaced, and have their trailing newline stripped.
type Lines interface {
	Next() (string, error)
	Close() error
}

// Open returns a Lines over the file at path, reading from the start.
// Files with a .gz extension are transparently decompressed.
func Open(path string) (Lines, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read gzip header of %s: %w", path, err)
		}
		return &gzipLines{r: bufio.NewReader(gz), gz: gz, f: f}, nil
	}
	return &fileLines{r: bufio.NewReader(f), f: f}, nil
}

// FromFile wraps an already-open file at its current seek position. Used
// by the tailer, which hands over a file already positioned at the first
// unread byte.
func FromFile(f *os.File) Lines {
	return &fileLines{r: bufio.NewReader(f), f: f}
}

// fileLines reads lines from a plain file.
type fileLines struct {
	r *bufio.Reader
	f *os.File
}

func (l *fileLines) Next() (string, error) {
	return nextLine(l.r)
}

func (l *fileLines) Close() error {
	return l.f.Close()
}

// gzipLines reads lines from a gzip-compressed file.
type gzipLines struct {
	r  *bufio.Reader
	gz *gzip.Reader
	f  *os.File
}

func (l *gzipLines) Next() (string, error) {
	return nextLine(l.r)
}

func (l *gzipLines) Close() error {
	gzErr := l.gz.Close()
	if err := l.f.Close(); err != nil {
		return err
	}
	return gzErr
}

// nextLine reads one line, tolerating a missing newline on the last line
// of the stream.
func nextLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return sanitize(line), nil
		}
		return "", err
	}
	return sanitize(line), nil
}

func sanitize(line string) string {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return strings.ToValidUTF8(line, "�")
}
