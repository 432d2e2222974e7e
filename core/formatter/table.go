package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// TableFormatter formats output as aligned text tables.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// Name returns the formatter name.
func (f *TableFormatter) Name() string {
	return "table"
}

// Description returns the formatter description.
func (f *TableFormatter) Description() string {
	return "Aligned text table output"
}

// FormatList formats a list of records as a table.
func (f *TableFormatter) FormatList(w io.Writer, t Table, records []map[string]any, opts FormatOptions) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cols := columns(t, opts)

	if !opts.NoHeader {
		headers := make([]string, len(cols))
		for i, col := range cols {
			headers[i] = strings.ToUpper(col)
		}
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}

	for _, record := range records {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = formatValue(record[col], opts.MaxWidth)
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}

	return tw.Flush()
}

// FormatRecord formats a single record as key-value pairs.
func (f *TableFormatter) FormatRecord(w io.Writer, t Table, record map[string]any, opts FormatOptions) error {
	if record == nil {
		fmt.Fprintln(w, "Record not found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for _, col := range columns(t, opts) {
		// no truncation in the detail view
		fmt.Fprintf(tw, "%s:\t%s\n", formatLabel(col), formatValue(record[col], 0))
	}

	return tw.Flush()
}

// FormatError formats an error message.
func (f *TableFormatter) FormatError(w io.Writer, err error) error {
	_, werr := fmt.Fprintf(w, "Error: %s\n", err.Error())
	return werr
}

// formatLabel turns a snake_case key into Title Case.
func formatLabel(name string) string {
	words := strings.Split(name, "_")
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// formatValue formats a value for display.
func formatValue(val any, maxWidth int) string {
	if val == nil {
		return "-"
	}

	var str string
	switch v := val.(type) {
	case string:
		str = v
	case bool:
		if v {
			str = "yes"
		} else {
			str = "no"
		}
	case []byte:
		str = "[binary]"
	case int:
		str = strconv.Itoa(v)
	case int64:
		str = strconv.FormatInt(v, 10)
	case float64:
		str = strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		str = v.Format(time.RFC3339)
	case []string:
		str = strings.Join(v, ", ")
	case fmt.Stringer:
		str = v.String()
	default:
		b, _ := json.Marshal(v)
		str = string(b)
	}

	if maxWidth > 3 && len(str) > maxWidth {
		str = str[:maxWidth-3] + "..."
	}

	return str
}

func init() {
	if err := Register(NewTableFormatter()); err != nil {
		fmt.Printf("failed to register table formatter: %v\n", err)
	}
}
