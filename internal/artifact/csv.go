// Package artifact renders query results as CSV and stores them under the
// output root, mirroring the layout of the query tree.
package artifact

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"sqlitemgr/internal/sqlite"
)

// WriteCSV writes res to w: one header line with the column names, then one
// line per row. NULL becomes an empty field. It returns the number of data
// rows written.
func WriteCSV(w io.Writer, res sqlite.Result) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(res.Columns); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(res.Columns))
	for i, row := range res.Rows {
		if len(row) != len(res.Columns) {
			return i, fmt.Errorf("row %d: %d values for %d columns", i+1, len(row), len(res.Columns))
		}
		for j, v := range row {
			record[j] = FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return i, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return len(res.Rows), fmt.Errorf("flush csv: %w", err)
	}
	return len(res.Rows), nil
}

// FormatValue renders a single scanned value as a CSV field.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// formatFloat renders a REAL so it stays distinguishable from an INTEGER:
// integral values keep a ".0" suffix and plain decimal notation is used
// between 1e-4 and 1e16, exponent notation outside that range.
func formatFloat(x float64) string {
	switch {
	case math.IsNaN(x):
		return ""
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	if a := math.Abs(x); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
