package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render writes the table left aligned, without borders or rules.
func (t *Table) Render(w io.Writer) error {
	if len(t.Headers) == 0 && len(t.Rows) == 0 {
		return nil
	}

	cnf := tablewriter.Config{
		Header: tw.CellConfig{
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
	}

	symbols := tw.NewSymbolCustom("gatekeeper").
		WithRow(" ").
		WithColumn(" ").
		WithCenter(" ")

	rd := tw.Rendition{Borders: tw.BorderNone, Symbols: symbols}
	rd.Settings.Lines.ShowHeaderLine = tw.Off

	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(rd)),
		tablewriter.WithConfig(cnf),
	)
	if len(t.Headers) > 0 {
		headers := make([]any, len(t.Headers))
		for i, h := range t.Headers {
			headers[i] = h
		}
		table.Header(headers...)
	}
	if err := table.Bulk(t.Rows); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return table.Render()
}

// TableFormatter formats data as an aligned table.
type TableFormatter struct{}

// Format renders a *Table directly and flattens anything else into
// KEY/VALUE rows, with nested keys joined by dots.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch t := data.(type) {
	case nil:
		return nil
	case *Table:
		return t.Render(w)
	case Table:
		return t.Render(w)
	}

	generic, err := toGeneric(data)
	if err != nil {
		return err
	}
	table := NewTable("KEY", "VALUE")
	flatten("", generic, table)
	return table.Render(w)
}

func flatten(prefix string, v any, t *Table) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(join(prefix, k), val[k], t)
		}
	case []any:
		if len(val) == 0 {
			t.AddRow(prefix, "-")
			return
		}
		for i, item := range val {
			flatten(join(prefix, fmt.Sprint(i)), item, t)
		}
	default:
		t.AddRow(prefix, Cell(val))
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Cell formats a decoded JSON scalar for a table. Empty values print as "-".
func Cell(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		if val == "" {
			return "-"
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.2f", val)
	default:
		return fmt.Sprint(val)
	}
}
