package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/raysh454/reconai/internal/model"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", formatTable:
		return formatTable, nil
	case formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Color functions for terminal output. fatih/color disables them when stdout
// is not a terminal.
var (
	colorBold   = color.New(color.Bold).SprintFunc()
	colorGreen  = color.New(color.FgGreen).SprintFunc()
	colorRed    = color.New(color.FgRed).SprintFunc()
	colorYellow = color.New(color.FgYellow).SprintFunc()
	colorCyan   = color.New(color.FgCyan).SprintFunc()
)

func colorStatus(s string) string {
	switch s {
	case string(model.ScanCompleted), string(model.OutcomeSuccess):
		return colorGreen(s)
	case string(model.ScanFailed):
		return colorRed(s)
	case string(model.OutcomeTimedOut), string(model.ScanRunning), string(model.ScanPending):
		return colorYellow(s)
	default:
		return s
	}
}

func colorSeverity(s string) string {
	switch strings.ToLower(s) {
	case "critical", "high":
		return colorRed(s)
	case "medium":
		return colorYellow(s)
	default:
		return colorCyan(s)
	}
}

// render writes v as JSON or YAML, or calls table for the table format.
func render(w io.Writer, f outputFormat, v any, table func(io.Writer) error) error {
	switch f {
	case formatJSON:
		return writeJSON(w, v)
	case formatYAML:
		return writeYAML(w, v)
	default:
		return table(w)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML goes through JSON so custom JSON marshalers, json tags and
// module order carry over. The parsed document is restyled to block form.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("convert to yaml: %w", err)
	}
	blockStyle(&doc)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinTargets(tts []model.TargetType) string {
	if len(tts) == 0 {
		return "-"
	}
	out := make([]string, len(tts))
	for i, tt := range tts {
		out[i] = string(tt)
	}
	return strings.Join(out, ",")
}
