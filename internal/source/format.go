package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/TableExport/internal/export"
)

// Formatter turns a raw cell into display text. Formatters run on render
// workers and must be safe for concurrent use.
type Formatter func(raw string) (string, error)

var formatters = map[string]Formatter{
	"default": func(raw string) (string, error) { return raw, nil },
	"size":    FormatBytes,
	"upper":   func(raw string) (string, error) { return strings.ToUpper(raw), nil },
}

// FormatterByName looks up a named formatter: "default", "size" or "upper".
func FormatterByName(name string) (Formatter, bool) {
	f, ok := formatters[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// ParseColumnFormats parses "Col=size,Other Col=upper" into formatters keyed
// by column index of t.
func ParseColumnFormats(t export.Table, spec string) (map[int]Formatter, error) {
	out := make(map[int]Formatter)
	if strings.TrimSpace(spec) == "" {
		return out, nil
	}

	index := make(map[string]int, t.ColumnCount())
	for col := 0; col < t.ColumnCount(); col++ {
		index[strings.ToLower(t.ColumnName(col))] = col
	}

	for _, part := range strings.Split(spec, ",") {
		name, format, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("column format %q: want column=formatter", part)
		}
		col, ok := index[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("column format %q: unknown column", name)
		}
		f, ok := FormatterByName(format)
		if !ok {
			return nil, fmt.Errorf("column format %q: unknown formatter %q", name, format)
		}
		out[col] = f
	}
	return out, nil
}

type formattedTable struct {
	export.Table
	formatters map[int]Formatter
}

// WithFormatters returns t with per-column formatting applied to CellText.
// Columns without a formatter are passed through unchanged.
func WithFormatters(t export.Table, formatters map[int]Formatter) export.Table {
	if len(formatters) == 0 {
		return t
	}
	return &formattedTable{Table: t, formatters: formatters}
}

func (f *formattedTable) CellText(row int64, col int) (string, error) {
	raw, err := f.Table.CellText(row, col)
	if err != nil {
		return "", err
	}
	if fn := f.formatters[col]; fn != nil {
		return fn(raw)
	}
	return raw, nil
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes renders a byte count such as "1536" as "1.5 KB". Empty input
// stays empty.
func FormatBytes(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", fmt.Errorf("size %q: %w", raw, err)
	}

	neg := n < 0
	v := math.Abs(float64(n))
	unit := 0
	for v >= 1024 && unit < len(sizeUnits)-1 {
		v /= 1024
		unit++
	}

	var s string
	if unit == 0 {
		s = strconv.FormatFloat(v, 'f', 0, 64) + " B"
	} else {
		s = strconv.FormatFloat(v, 'f', 1, 64) + " " + sizeUnits[unit]
	}
	if neg {
		s = "-" + s
	}
	return s, nil
}

// FormatValue renders a value returned by pgx as export text. NULLs become
// empty strings.
func FormatValue(v any) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return ""
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return ""
		}
		return formatFloat(f.Float64)

	case pgtype.Date:
		if !val.Valid {
			return ""
		}
		return val.Time.Format("2006-01-02")

	case pgtype.Timestamptz:
		if !val.Valid {
			return ""
		}
		return formatTime(val.Time)

	case pgtype.Text:
		if !val.Valid {
			return ""
		}
		return val.String

	case pgtype.Bool:
		if !val.Valid {
			return ""
		}
		return yesNo(val.Bool)

	case pgtype.UUID:
		if !val.Valid {
			return ""
		}
		return uuid.UUID(val.Bytes).String()

	case [16]byte:
		return uuid.UUID(val).String()

	case time.Time:
		return formatTime(val)

	case bool:
		return yesNo(val)

	case string:
		return val

	case []byte:
		return string(val)

	case float64:
		return formatFloat(val)

	case float32:
		return formatFloat(float64(val))

	case int64:
		return strconv.FormatInt(val, 10)

	case int32:
		return strconv.FormatInt(int64(val), 10)

	case int16:
		return strconv.FormatInt(int64(val), 10)

	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	h, m, s := t.Clock()
	if h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
