package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Reader streams the rows of a manifest. The first line of a long-form
// manifest is the scan-root header; the short form prefixes an additional
// numeric wall-clock line and its rows omit the timestamp columns.
type Reader struct {
	scanner   *bufio.Scanner
	root      string
	timestamp string
	short     bool
	primed    bool
}

// NewReader wraps r. The header lines are not consumed until the first call
// to Root, Timestamp or Next.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: sc}
}

func (m *Reader) prime() error {
	if m.primed {
		return nil
	}
	m.primed = true

	if !m.scanner.Scan() {
		if err := m.scanner.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	first := m.scanner.Text()
	if isNumeric(first) {
		m.short = true
		m.timestamp = first
		if !m.scanner.Scan() {
			if err := m.scanner.Err(); err != nil {
				return err
			}
			return fmt.Errorf("short manifest missing root header")
		}
		first = m.scanner.Text()
	}
	m.root = first
	return nil
}

// Root returns the scan-root header. An empty manifest yields io.EOF.
func (m *Reader) Root() (string, error) {
	if err := m.prime(); err != nil {
		return "", err
	}
	return m.root, nil
}

// Timestamp returns the raw wall-clock header of a short-form manifest, or
// the empty string for the long form.
func (m *Reader) Timestamp() (string, error) {
	if err := m.prime(); err != nil {
		return "", err
	}
	return m.timestamp, nil
}

// Next returns the next record, or io.EOF after the last row. A malformed
// row aborts the stream.
func (m *Reader) Next() (*FileRecord, error) {
	if err := m.prime(); err != nil {
		return nil, err
	}
	for m.scanner.Scan() {
		line := strings.TrimRight(m.scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if m.short {
			return ParseShortRecord(line)
		}
		return ParseRecord(line)
	}
	if err := m.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
