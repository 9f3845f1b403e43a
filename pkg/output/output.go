// Package output renders result tables for the terminal and for files.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-yaml"

	"audio-analyzer/pkg/models"
)

// Format is the output format type
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
)

// Formats lists every supported format, default first.
var Formats = []Format{FormatTable, FormatJSON, FormatYAML, FormatCSV}

// Options configures output behavior
type Options struct {
	Format Format

	// File is the output file path (empty for stdout)
	File string

	// Writer overrides File
	Writer io.Writer
}

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatTable, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// Write renders the result table to the configured destination.
func Write(result *models.ResultTable, opts Options) error {
	if result == nil {
		return fmt.Errorf("no result table to write")
	}

	var w io.Writer = os.Stdout
	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.Format {
	case FormatTable, "":
		return writeTable(w, result)
	case FormatJSON:
		return writeJSON(w, result)
	case FormatYAML:
		return writeYAML(w, result)
	case FormatCSV:
		return writeCSV(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

func writeTable(w io.Writer, result *models.ResultTable) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(models.Columns...).
		Rows(cells(result)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col > 0 && col < len(models.Columns)-1 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func writeJSON(w io.Writer, result *models.ResultTable) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeYAML(w io.Writer, result *models.ResultTable) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func writeCSV(w io.Writer, result *models.ResultTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(cells(result)); err != nil {
		return err
	}
	return cw.Error()
}

// cells formats each row as strings ordered like models.Columns.
func cells(result *models.ResultTable) [][]string {
	out := make([][]string, 0, len(result.Rows))
	for _, r := range result.Rows {
		out = append(out, []string{
			r.Speaker,
			formatFloat(r.SegmentDuration, 4),
			formatFloat(r.RMSEnergy, 6),
			formatFloat(r.ZeroCrossingRate, 6),
			formatFloat(r.SpectralCentroid, 2),
			formatFloat(r.SpectralBandwidth, 2),
			r.Sentiment,
		})
	}
	return out
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
