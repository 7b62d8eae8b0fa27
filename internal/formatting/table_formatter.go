package formatting

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{options: options}
}

// FormatRegistrations renders one row per registration.
func (f *TableFormatter) FormatRegistrations(w io.Writer, views []RegistrationView) error {
	if len(views) == 0 {
		_, err := io.WriteString(w, f.formatEmptyMessage("📋", "No registrations configured"))
		return err
	}

	t := f.createTable(w)
	t.AppendHeader(table.Row{
		f.header("ID"), f.header("GRANT"), f.header("CLIENT ID"),
		f.header("SECRET"), f.header("SCOPES"), f.header("TOKEN URL"),
	})
	for _, v := range views {
		id := v.ID
		if v.IsDefault {
			id += " (default)"
		}
		secret := "-"
		if v.HasSecret {
			secret = "set"
		}
		t.AppendRow(table.Row{id, v.GrantType, v.ClientID, secret, strings.Join(v.Scopes, " "), v.TokenURL})
	}
	t.Render()

	_, err := fmt.Fprintf(w, "\n%s %s %s\n",
		f.colorize(text.FgHiBlue, "Total:"),
		f.colorize(text.FgHiWhite, fmt.Sprint(len(views))),
		f.colorize(text.FgHiBlue, "registrations"))
	return err
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(s string) string {
	return f.colorize(text.FgHiCyan, s)
}

func (f *TableFormatter) colorize(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(icon, message string) string {
	return fmt.Sprintf("%s %s\n", f.colorize(text.FgYellow, icon), f.colorize(text.FgYellow, message))
}
