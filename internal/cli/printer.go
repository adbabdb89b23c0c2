package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"cluster-inspection/internal/color"
	"cluster-inspection/internal/units"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format for CLI commands
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return f, nil
	case "":
		return OutputFormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (table, json or yaml)", s)
	}
}

// PrinterOptions contains options for output formatting
type PrinterOptions struct {
	Format OutputFormat
	Quiet  bool
	Out    io.Writer // defaults to os.Stdout
}

// Printer renders command results as tables, JSON or YAML.
type Printer struct {
	options PrinterOptions
	out     io.Writer
}

// NewPrinter creates a new printer
func NewPrinter(options PrinterOptions) *Printer {
	if options.Format == "" {
		options.Format = OutputFormatTable
	}
	out := options.Out
	if out == nil {
		out = os.Stdout
	}
	return &Printer{options: options, out: out}
}

// Print renders any JSON-serializable value.
func (p *Printer) Print(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return p.printJSON(data, "")
}

// PrintRecords renders a resource collection, choosing columns for kind ("nodes",
// "pods", "events").
func (p *Printer) PrintRecords(kind string, records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	return p.printJSON(data, kind)
}

// Message prints a one-line status unless quiet.
func (p *Printer) Message(format string, args ...interface{}) {
	if p.options.Quiet {
		return
	}
	fmt.Fprintln(p.out, color.SuccessStyle.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) printJSON(data []byte, kind string) error {
	switch p.options.Format {
	case OutputFormatJSON:
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
		pretty, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(p.out, string(pretty))
		return nil
	case OutputFormatYAML:
		return p.outputYAML(data)
	case OutputFormatTable:
		return p.outputTable(data, kind)
	default:
		return fmt.Errorf("unsupported output format: %s", p.options.Format)
	}
}

// outputYAML converts JSON to YAML and prints it
func (p *Printer) outputYAML(jsonData []byte) error {
	var data interface{}
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to convert to YAML: %w", err)
	}

	fmt.Fprint(p.out, string(yamlData))
	return nil
}

func (p *Printer) outputTable(jsonData []byte, kind string) error {
	var data interface{}
	if err := json.Unmarshal(jsonData, &data); err != nil {
		fmt.Fprintln(p.out, string(jsonData))
		return nil
	}

	switch d := data.(type) {
	case map[string]interface{}:
		return p.formatTableFromObject(d)
	case []interface{}:
		return p.formatTableFromArray(d, kind)
	default:
		fmt.Fprintln(p.out, string(jsonData))
		return nil
	}
}

// formatTableFromObject handles wrapped lists like {"clusters": [...], "total": N}
func (p *Printer) formatTableFromObject(data map[string]interface{}) error {
	for _, key := range []string{"clusters", "records", "items"} {
		arr, ok := data[key].([]interface{})
		if !ok {
			continue
		}
		if err := p.formatTableFromArray(arr, key); err != nil {
			return err
		}
		if total, ok := data["total"]; ok && !p.options.Quiet {
			fmt.Fprintf(p.out, "\n%s %v %s\n",
				text.FgHiBlue.Sprint("Total:"),
				text.FgHiWhite.Sprint(total),
				key)
		}
		return nil
	}

	return p.formatKeyValueTable(data)
}

// formatTableFromArray creates a table from an array of objects
func (p *Printer) formatTableFromArray(data []interface{}, kind string) error {
	if len(data) == 0 {
		if !p.options.Quiet {
			fmt.Fprintln(p.out, text.FgYellow.Sprint("No items found"))
		}
		return nil
	}

	firstObj, ok := data[0].(map[string]interface{})
	if !ok {
		for _, item := range data {
			fmt.Fprintln(p.out, item)
		}
		return nil
	}

	columns := selectColumns(kind, firstObj)

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)

	headers := make(table.Row, len(columns))
	for i, col := range columns {
		headers[i] = text.FgHiCyan.Sprint(strings.ToUpper(col))
	}
	t.AppendHeader(headers)

	for _, item := range data {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		row := make(table.Row, len(columns))
		for i, col := range columns {
			row[i] = formatCellValue(col, itemMap[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	return nil
}

// formatKeyValueTable formats an object as key-value pairs
func (p *Printer) formatKeyValueTable(data map[string]interface{}) error {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("PROPERTY"),
		text.FgHiCyan.Sprint("VALUE"),
	})

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		t.AppendRow(table.Row{
			text.FgYellow.Sprint(key),
			formatCellValue(key, data[key]),
		})
	}

	t.Render()
	return nil
}

const maxColumns = 6

var priorityColumns = map[string][]string{
	"nodes":    {"name", "status", "roles", "cpu", "memory", "pods"},
	"pods":     {"name", "namespace", "node", "status", "restarts", "memory"},
	"events":   {"type", "reason", "object", "message", "namespace", "lastTimestamp"},
	"clusters": {"id", "name", "selected"},
}

// selectColumns picks the kind's priority columns present in sample, then fills up with
// the remaining keys in alphabetical order.
func selectColumns(kind string, sample map[string]interface{}) []string {
	var columns []string
	used := map[string]bool{}
	for _, col := range priorityColumns[kind] {
		if _, ok := sample[col]; ok {
			columns = append(columns, col)
			used[col] = true
		}
	}

	var rest []string
	for key := range sample {
		if !used[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		if len(columns) >= maxColumns {
			break
		}
		columns = append(columns, key)
	}
	return columns
}

// formatCellValue formats individual cell values with appropriate styling
func formatCellValue(column string, value interface{}) interface{} {
	if value == nil {
		return text.FgHiBlack.Sprint("-")
	}

	col := strings.ToLower(column)
	switch {
	case strings.Contains(col, "memory"):
		return formatMemory(value)
	case col == "status" || col == "phase" || col == "type":
		return color.Status(fmt.Sprintf("%v", value))
	case col == "selected":
		if b, ok := value.(bool); ok && b {
			return text.FgGreen.Sprint("*")
		}
		return ""
	case col == "message":
		return truncate(fmt.Sprintf("%v", value), 50)
	}

	switch v := value.(type) {
	case map[string]interface{}:
		return text.FgHiBlack.Sprintf("[%d fields]", len(v))
	case []interface{}:
		return text.FgHiBlack.Sprintf("[%d items]", len(v))
	case float64:
		return formatNumber(v)
	default:
		return truncate(fmt.Sprintf("%v", v), 30)
	}
}

func formatMemory(value interface{}) string {
	switch v := value.(type) {
	case float64:
		return units.FormatMemory(v, units.Mi)
	case string:
		return units.HumanizeQuantity(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}

// truncate shortens s to width terminal cells.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
