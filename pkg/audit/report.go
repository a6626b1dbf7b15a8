package audit

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nimbusworks/nimbus-migrate/pkg/logging"
)

// CheckResult holds the output of one audit query: column names plus rows
// rendered as strings, or the error that stopped it.
type CheckResult struct {
	Name    string
	Columns []string
	Rows    [][]string
	Err     error
}

// SectionResult groups the checks of one audit section.
type SectionResult struct {
	Name   string
	Checks []CheckResult
}

// Add appends one check result.
func (s *SectionResult) Add(r CheckResult) {
	s.Checks = append(s.Checks, r)
}

// Report is the full audit output.
type Report struct {
	Prefix      string
	GeneratedAt time.Time
	Sections    []*SectionResult
}

// NewReport creates an empty report for one table prefix.
func NewReport(prefix string) *Report {
	return &Report{Prefix: prefix, GeneratedAt: time.Now().UTC()}
}

// Section returns the named section, creating it on first use.
func (r *Report) Section(name string) *SectionResult {
	for _, s := range r.Sections {
		if s.Name == name {
			return s
		}
	}
	s := &SectionResult{Name: name}
	r.Sections = append(r.Sections, s)
	return s
}

// Failed reports whether any check errored.
func (r *Report) Failed() bool {
	for _, s := range r.Sections {
		for _, c := range s.Checks {
			if c.Err != nil {
				return true
			}
		}
	}
	return false
}

// Render writes the report as aligned plain text.
func (r *Report) Render(w io.Writer) error {
	fmt.Fprintf(w, "PRE-MIGRATION AUDIT\n")
	fmt.Fprintf(w, "Source prefix: %s\n", r.Prefix)
	fmt.Fprintf(w, "Generated:     %s\n", r.GeneratedAt.Format(time.RFC3339))

	for _, s := range r.Sections {
		fmt.Fprintf(w, "\n%s\n%s\n", strings.ToUpper(s.Name), strings.Repeat("=", len(s.Name)))
		for _, c := range s.Checks {
			fmt.Fprintf(w, "\n-- %s\n", c.Name)
			if c.Err != nil {
				fmt.Fprintf(w, "   ERROR: %v\n", c.Err)
				continue
			}
			if len(c.Rows) == 0 {
				fmt.Fprintf(w, "   (no rows)\n")
				continue
			}
			renderTable(w, c.Columns, c.Rows)
		}
	}
	return nil
}

func renderTable(w io.Writer, columns []string, rows [][]string) {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for _, row := range rows {
		for i, v := range row {
			if i < len(widths) && len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}
	// Very wide values (answer previews, emails lists) are capped so the
	// report stays readable in a terminal.
	for i := range widths {
		if widths[i] > 60 {
			widths[i] = 60
		}
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, v := range cells {
			width := widths[min(i, len(widths)-1)]
			if len(v) > width && width > 3 {
				v = logging.TruncateString(v, width-3)
			}
			parts[i] = fmt.Sprintf("%-*s", width, v)
		}
		fmt.Fprintf(w, "   %s\n", strings.Join(parts, "  "))
	}

	writeRow(columns)
	for _, row := range rows {
		writeRow(row)
	}
}
