// Package table renders dataset rows as the dashboard data table.
package table

import (
	"bytes"
	"html/template"
	"net/url"

	"indicadores/dashboard-go/internal/dataset"
)

// FilterColumn is the column whose header carries the filter dropdown.
const FilterColumn = dataset.ColumnEntity

type Header struct {
	Name string `json:"name"`
	// FilterURL and FilterOptions are only set on the filterable column.
	FilterURL     string   `json:"filter_url,omitempty"`
	FilterOptions []string `json:"filter_options,omitempty"`
}

// View is a fully rendered table. Each Render builds a new View; nothing carries over.
type View struct {
	Headers []Header   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// ValuesURL is the endpoint listing the distinct values of column.
func ValuesURL(column string) string {
	return "/api/columns/" + url.PathEscape(column) + "/values"
}

// Render lays rows out under columnOrder, or under the first row's key order when columnOrder
// is empty. A row missing a column gets an empty cell.
func Render(rows []dataset.Row, columnOrder []string) View {
	cols := columnOrder
	if len(cols) == 0 && len(rows) > 0 {
		cols = rows[0].Keys()
	}

	v := View{
		Headers: make([]Header, 0, len(cols)),
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, c := range cols {
		h := Header{Name: c}
		if c == FilterColumn {
			h.FilterURL = ValuesURL(c)
			h.FilterOptions = dataset.DistinctValues(rows, c)
		}
		v.Headers = append(v.Headers, h)
	}
	for _, r := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i], _ = r.Get(c)
		}
		v.Rows = append(v.Rows, cells)
	}
	return v
}

var (
	headersTmpl = template.Must(template.New("headers").Parse(
		`<tr>{{range .}}<th{{if .FilterURL}} class="filterable" data-filter-url="{{.FilterURL}}"{{end}}>{{.Name}}` +
			`{{if .FilterURL}}<select class="column-filter" aria-label="Filtrar {{.Name}}"><option value="">Todas</option>` +
			`{{range .FilterOptions}}<option value="{{.}}">{{.}}</option>{{end}}</select>{{end}}</th>{{end}}</tr>`))

	bodyTmpl = template.Must(template.New("body").Parse(
		`{{range .}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}`))
)

// HeadersHTML is the markup placed inside the table-headers element.
func (v View) HeadersHTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := headersTmpl.Execute(&buf, v.Headers); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// BodyHTML is the markup placed inside the table-body element.
func (v View) BodyHTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := bodyTmpl.Execute(&buf, v.Rows); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
