// Package export encodes flat rows as spreadsheet-friendly CSV.
//
// Output starts with a UTF-8 byte order mark, lines are joined with "\n"
// and every data field is double-quoted.
package export

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// BOM is written before the header line.
const BOM = "\uFEFF"

var (
	ErrNoRows    = errors.New("no rows to export")
	ErrNoColumns = errors.New("first row has no scalar fields")
)

var isoDatePrefix = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)

// Field is one key/value pair of a row.
type Field struct {
	Key   string
	Value any
}

// Row is an ordered set of fields. The first row fixes the column order.
type Row []Field

// Get returns the value stored under key.
func (r Row) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Format controls how a column's values are rendered.
type Format int

const (
	// FormatAuto treats the column as a date when its name contains "date".
	FormatAuto Format = iota
	FormatText
	// FormatDate rewrites YYYY-MM-DD values to MM/DD/YYYY.
	FormatDate
)

// Column declares the format of a named column.
type Column struct {
	Name   string
	Format Format
}

// Encoder renders rows. Columns only declares formats; the column set and
// order always come from the first row.
type Encoder struct {
	Columns []Column
}

// Encode renders rows with name-based date detection.
func Encode(rows []Row) ([]byte, error) {
	return Encoder{}.Encode(rows)
}

func (e Encoder) Encode(rows []Row) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	var headers []string
	for _, f := range rows[0] {
		if isScalar(f.Value) {
			headers = append(headers, f.Key)
		}
	}
	if len(headers) == 0 {
		return nil, ErrNoColumns
	}

	dateCols := make([]bool, len(headers))
	for i, h := range headers {
		dateCols[i] = e.isDateColumn(h)
	}

	var b strings.Builder
	b.WriteString(BOM)
	for i, h := range headers {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(headerName(h))
	}

	for _, row := range rows {
		b.WriteByte('\n')
		for i, h := range headers {
			if i > 0 {
				b.WriteByte(',')
			}
			v, _ := row.Get(h)
			s := render(v)
			if dateCols[i] {
				s = rewriteDate(s, v)
			}
			b.WriteString(quote(s))
		}
	}
	return []byte(b.String()), nil
}

func (e Encoder) isDateColumn(name string) bool {
	for _, c := range e.Columns {
		if c.Name == name {
			switch c.Format {
			case FormatDate:
				return true
			case FormatText:
				return false
			}
			break
		}
	}
	return strings.Contains(strings.ToLower(name), "date")
}

// rewriteDate only touches string values.
func rewriteDate(s string, v any) string {
	if _, ok := v.(string); !ok {
		return s
	}
	m := isoDatePrefix.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return m[2] + "/" + m[3] + "/" + m[1]
}

func isScalar(v any) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(fmt.Stringer); ok {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// headerName leaves plain names bare and quotes the rest.
func headerName(h string) string {
	if strings.ContainsAny(h, ",\"\r\n") {
		return quote(h)
	}
	return h
}
