package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"sqlitemgr/internal/textenc"
)

// ErrNoHeader is returned for a CSV source without a header row.
var ErrNoHeader = errors.New("csv has no header row")

// Reader streams the records of a CSV source with a header row.
type Reader struct {
	cr     *csv.Reader
	header []string
	record int
}

// NewReader reads and normalizes the header of r. The input may carry a
// UTF-8 or UTF-16 byte order mark. Header cells are trimmed and
// NFC-normalized; blank or duplicate names are rejected.
func NewReader(r io.Reader, comma rune) (*Reader, error) {
	cr := csv.NewReader(textenc.NewReader(r))
	cr.Comma = comma
	cr.FieldsPerRecord = -1

	rd := &Reader{cr: cr}
	hdr, err := rd.read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	hdr = textenc.NormalizeHeaders(hdr)
	seen := make(map[string]int, len(hdr))
	for i, h := range hdr {
		if h == "" {
			return nil, fmt.Errorf("header column %d is blank", i+1)
		}
		key := strings.ToLower(h)
		if j, dup := seen[key]; dup {
			return nil, fmt.Errorf("header column %d duplicates column %d (%q)", i+1, j+1, h)
		}
		seen[key] = i
	}
	rd.header = hdr
	return rd, nil
}

// Header returns the normalized column names.
func (r *Reader) Header() []string { return r.header }

func (r *Reader) read() ([]string, error) {
	r.record++
	return r.cr.Read()
}

// Stream sends every data record to out as a row aligned to Header. Empty
// cells become nil (NULL); short records are padded with nil. A record with
// more cells than the header is an error. Stream returns the number of rows
// sent; it does not close out.
func (r *Reader) Stream(ctx context.Context, out chan<- []any) (int64, error) {
	var n int64
	width := len(r.header)
	for {
		rec, err := r.read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("csv record %d: %w", r.record, err)
		}
		if len(rec) > width {
			return n, fmt.Errorf("csv record %d: %d fields, header has %d", r.record, len(rec), width)
		}

		row := make([]any, width)
		for i, v := range rec {
			if v != "" {
				row[i] = v
			}
		}

		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case out <- row:
			n++
		}
	}
}
