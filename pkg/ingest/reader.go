package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/aretw0/sagalens/pkg/domain"
)

// maxLine bounds a single JSON Lines record.
const maxLine = 4 << 20

// Reader streams events from a JSON Lines source. Blank lines are skipped.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{scanner: sc}
}

// Next returns the next event, or io.EOF at the end of the stream.
// Decoding errors carry the line number.
func (r *Reader) Next() (domain.Event, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := Decode(line)
		if err != nil {
			return domain.Event{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return domain.Event{}, fmt.Errorf("read events: %w", err)
	}
	return domain.Event{}, io.EOF
}
