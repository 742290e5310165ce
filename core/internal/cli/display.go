package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"plasma/core/internal/dissect"
	"plasma/dissector"
)

const (
	formatRich = "rich"
	formatJSON = "json"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failStyle   = cellStyle.Foreground(lipgloss.Color("#FF0000"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

// output renders run results and the catalog either as a lipgloss table
// or as one JSON object per line.
type output struct {
	w    io.Writer
	json bool
}

func newOutput(w io.Writer, format string) (*output, error) {
	switch format {
	case formatRich:
		return &output{w: w}, nil
	case formatJSON:
		return &output{w: w, json: true}, nil
	default:
		return nil, fmt.Errorf("unknown display format %q (rich|json)", format)
	}
}

type resultLine struct {
	Dissector    string  `json:"dissector"`
	Targets      int64   `json:"targets"`
	Records      int64   `json:"records"`
	ErrorRecords int64   `json:"error_records"`
	ElapsedSec   float64 `json:"elapsed_sec"`
	OutputPath   string  `json:"output_path"`
	ErrorPath    string  `json:"error_path"`
	Error        string  `json:"error,omitempty"`
}

type summaryLine struct {
	RunID      string  `json:"run_id"`
	Hostname   string  `json:"hostname"`
	Target     string  `json:"target"`
	OutputDir  string  `json:"output_dir"`
	Dissectors int     `json:"dissectors"`
	Failed     int     `json:"failed"`
	ElapsedSec float64 `json:"elapsed_sec"`
}

func (o *output) results(res dissect.Result) error {
	failed := 0
	for _, r := range res.Dissectors {
		if r.Err != nil {
			failed++
		}
	}
	if o.json {
		enc := json.NewEncoder(o.w)
		for _, r := range res.Dissectors {
			line := resultLine{
				Dissector:    r.Dissector,
				Targets:      r.Targets,
				Records:      r.Records,
				ErrorRecords: r.ErrorRecords,
				ElapsedSec:   r.Elapsed.Seconds(),
				OutputPath:   r.OutputPath,
				ErrorPath:    r.ErrorPath,
			}
			if r.Err != nil {
				line.Error = r.Err.Error()
			}
			if err := enc.Encode(line); err != nil {
				return err
			}
		}
		return enc.Encode(summaryLine{
			RunID:      res.RunID,
			Hostname:   res.Hostname,
			Target:     res.Target,
			OutputDir:  res.OutputDir,
			Dissectors: len(res.Dissectors),
			Failed:     failed,
			ElapsedSec: res.Elapsed.Seconds(),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("DISSECTOR", "TARGETS", "RECORDS", "ERRORS", "ELAPSED", "STATUS")
	for _, r := range res.Dissectors {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		t.Row(r.Dissector,
			strconv.FormatInt(r.Targets, 10),
			strconv.FormatInt(r.Records, 10),
			strconv.FormatInt(r.ErrorRecords, 10),
			r.Elapsed.Round(time.Millisecond).String(),
			status)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == 5 && row >= 0 && row < len(res.Dissectors) && res.Dissectors[row].Err != nil {
			return failStyle
		}
		return cellStyle
	})

	summary := fmt.Sprintf("run %s on %s: %d dissectors, %d failed, %s -> %s",
		res.RunID, res.Hostname, len(res.Dissectors), failed,
		res.Elapsed.Round(time.Millisecond), res.OutputDir)
	_, err := fmt.Fprintln(o.w, t.Render()+"\n"+mutedStyle.Render(summary))
	return err
}

type catalogLine struct {
	Slug        string   `json:"slug"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
}

func (o *output) catalog(ds []*dissector.Dissector) error {
	lines := make([]catalogLine, 0, len(ds))
	for _, d := range ds {
		line := catalogLine{Slug: d.Slug(), Description: d.Description()}
		for _, tag := range d.Tags() {
			line.Tags = append(line.Tags, string(tag))
		}
		for _, c := range d.Schema() {
			line.Columns = append(line.Columns, c.Name+":"+string(c.Type))
		}
		lines = append(lines, line)
	}

	if o.json {
		enc := json.NewEncoder(o.w)
		for _, line := range lines {
			if err := enc.Encode(line); err != nil {
				return err
			}
		}
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SLUG", "TAGS", "DESCRIPTION", "COLUMNS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, line := range lines {
		t.Row(line.Slug, strings.Join(line.Tags, ","), line.Description, strings.Join(line.Columns, " "))
	}
	_, err := fmt.Fprintln(o.w, t.Render())
	return err
}
