package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"mercator-hq/janitor/pkg/cleanup"
	"mercator-hq/janitor/pkg/cleanup/driver"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is aligned plain text output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON output.
	FormatJSON OutputFormat = "json"
)

// Formatter formats command output.
type Formatter interface {
	Format(data any) ([]byte, error)
	FormatTo(w io.Writer, data any) error
}

// Estimate is the result of a scan.
type Estimate struct {
	CategoryID string     `json:"categoryId"`
	Cutoff     *time.Time `json:"cutoff,omitempty"`
	Estimate   int64      `json:"estimate"`
}

// TextFormatter renders engine types as aligned tables. Other values fall
// back to %v.
type TextFormatter struct {
	printer *message.Printer
}

// Format converts data to text format.
func (f *TextFormatter) Format(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.FormatTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	p := f.printer
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	switch v := data.(type) {
	case []cleanup.CategoryStatus:
		fmt.Fprintln(tw, "CATEGORY\tKIND\tTITLE\tRUN\tSTATUS\tPROCESSED\tUPDATED")
		for _, s := range v {
			runID, status, processed, updated := "-", "-", "-", "-"
			if s.LastRun != nil {
				runID = s.LastRun.ID
				status = string(s.LastRun.Status)
				processed = p.Sprintf("%d", s.LastRun.ProcessedCount)
				updated = s.LastRun.UpdatedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.Category.ID, s.Category.Kind, s.Category.Title, runID, status, processed, updated)
		}
	case *cleanup.Run:
		fmt.Fprintf(tw, "Run:\t%s\n", v.ID)
		fmt.Fprintf(tw, "Category:\t%s\n", v.CategoryID)
		fmt.Fprintf(tw, "Status:\t%s\n", v.Status)
		fmt.Fprintf(tw, "Processed:\t%s\n", p.Sprintf("%d items in %d batches", v.ProcessedCount, v.ProcessedBatches))
		writeRetry(tw, v.LastError, v.RetryAfter)
	case *cleanup.TickResult:
		fmt.Fprintf(tw, "Run:\t%s\n", v.RunID)
		fmt.Fprintf(tw, "Status:\t%s\n", v.Status)
		fmt.Fprintf(tw, "Deleted:\t%s\n", p.Sprintf("%d", v.Deleted))
		fmt.Fprintf(tw, "Has more:\t%t\n", v.HasMore)
		fmt.Fprintf(tw, "Processed:\t%s\n", p.Sprintf("%d items in %d batches", v.ProcessedCount, v.ProcessedBatches))
		writeRetry(tw, v.LastError, v.RetryAfter)
	case *driver.Report:
		fmt.Fprintln(tw, "CATEGORY\tRUN\tTICKS\tDELETED\tSTATUS\tREASON\tERROR")
		for _, c := range v.Categories {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				c.CategoryID, orDash(c.RunID), c.Ticks, p.Sprintf("%d", c.Deleted), orDash(string(c.Status)), c.Reason, orDash(c.Error))
		}
		fmt.Fprintf(tw, "\n%s\n", p.Sprintf("Deleted %d items in %s", v.Deleted(), v.Duration.Round(time.Millisecond)))
	case Estimate:
		if v.Estimate < 0 {
			fmt.Fprintf(tw, "%s:\tunknown (no estimator)\n", v.CategoryID)
		} else {
			fmt.Fprintf(tw, "%s:\t%s\n", v.CategoryID, p.Sprintf("~%d eligible items", v.Estimate))
		}
	default:
		fmt.Fprintf(tw, "%v\n", data)
	}

	return tw.Flush()
}

func writeRetry(w io.Writer, lastError *string, retryAfter *time.Time) {
	if lastError != nil {
		fmt.Fprintf(w, "Last error:\t%s\n", *lastError)
	}
	if retryAfter != nil {
		fmt.Fprintf(w, "Retry after:\t%s\n", retryAfter.UTC().Format(time.RFC3339))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format converts data to JSON format.
func (f *JSONFormatter) Format(data any) ([]byte, error) {
	if f.Indent {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}, nil
	case FormatText, "":
		return &TextFormatter{printer: message.NewPrinter(language.English)}, nil
	default:
		return nil, NewConfigError("output", fmt.Sprintf("unknown format %q (want text or json)", format))
	}
}
