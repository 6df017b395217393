package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Well-known column names of the activity sheet.
const (
	ColumnEntity      = "Entidad"
	ColumnActivity    = "Actividad"
	ColumnPopulation  = "Población impactada"
	ColumnEndDate     = "Fecha final de ejecución"
	ColumnSummary     = "Resumen de actividades"
	ColumnDescription = "Descripción de los compromisos"
)

// Row is an ordered column → value mapping. A Row is immutable once built.
type Row struct {
	keys   []string
	values map[string]string
}

// NewRow builds a row from parallel key/value slices. Missing values are empty strings and
// duplicate keys keep the first occurrence.
func NewRow(keys []string, values []string) Row {
	r := Row{
		keys:   make([]string, 0, len(keys)),
		values: make(map[string]string, len(keys)),
	}
	for i, k := range keys {
		if _, dup := r.values[k]; dup {
			continue
		}
		v := ""
		if i < len(values) {
			v = values[i]
		}
		r.keys = append(r.keys, k)
		r.values[k] = v
	}
	return r
}

// RowFromMap builds a row with an explicit key order. Keys of m not listed in order are dropped.
func RowFromMap(order []string, m map[string]string) Row {
	vals := make([]string, len(order))
	for i, k := range order {
		vals[i] = m[k]
	}
	return NewRow(order, vals)
}

func (r Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Get returns the value for column and whether the column exists.
func (r Row) Get(column string) (string, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Value returns the value for column, or "" when absent.
func (r Row) Value(column string) string {
	return r.values[column]
}

// Lookup resolves a column whose header may carry stray whitespace in the sheet.
func (r Row) Lookup(column string) (string, bool) {
	_, v, ok := r.LookupKey(column)
	return v, ok
}

// LookupKey is Lookup that also returns the row's own spelling of the header.
func (r Row) LookupKey(column string) (key, value string, ok bool) {
	if v, ok := r.values[column]; ok {
		return column, v, true
	}
	want := strings.TrimSpace(column)
	for _, k := range r.keys {
		if strings.TrimSpace(k) == want {
			return k, r.values[k], true
		}
	}
	return "", "", false
}

func (r Row) Len() int { return len(r.keys) }

// With returns a copy of r with column set to value. New columns are appended.
func (r Row) With(column, value string) Row {
	keys := r.Keys()
	vals := make([]string, 0, len(keys)+1)
	found := false
	for _, k := range keys {
		if k == column {
			vals = append(vals, value)
			found = true
			continue
		}
		vals = append(vals, r.values[k])
	}
	if !found {
		keys = append(keys, column)
		vals = append(vals, value)
	}
	return NewRow(keys, vals)
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Row) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("dataset: row must be a JSON object")
	}
	var keys, vals []string
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		k, _ := kt.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		keys = append(keys, k)
		vals = append(vals, stringify(raw))
	}
	*r = NewRow(keys, vals)
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Table is a header row plus data rows, as read from the sheet.
type Table struct {
	Columns []string `json:"columns_order"`
	Rows    []Row    `json:"data"`
}

// FromValues turns raw sheet values (first row = headers) into a table. Short rows are padded
// with empty strings; cells beyond the header width are dropped.
func FromValues(values [][]string) Table {
	if len(values) == 0 {
		return Table{}
	}
	headers := make([]string, len(values[0]))
	copy(headers, values[0])

	rows := make([]Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		cells := make([]string, len(headers))
		copy(cells, raw)
		rows = append(rows, NewRow(headers, cells))
	}
	return Table{Columns: headers, Rows: rows}
}

// ColumnOrder returns the authoritative header order: the table columns when known, else the key
// order of the first row.
func (t Table) ColumnOrder() []string {
	if len(t.Columns) > 0 {
		out := make([]string, len(t.Columns))
		copy(out, t.Columns)
		return out
	}
	if len(t.Rows) > 0 {
		return t.Rows[0].Keys()
	}
	return nil
}
