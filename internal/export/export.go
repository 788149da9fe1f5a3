// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes the ranked result set to files and terminals.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// Formats accepted by Write.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Header is the CSV column order.
var Header = []string{"identifier", "title", "stage1_label", "stage2_label", "similarity_score"}

// FormatFor returns format if set, otherwise infers it from the file
// extension. Unknown extensions default to CSV.
func FormatFor(path, format string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			return FormatJSON, nil
		case ".yaml", ".yml":
			return FormatYAML, nil
		default:
			return FormatCSV, nil
		}
	}
	switch f := strings.ToLower(format); f {
	case FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q: use csv, json, or yaml", format)
}

// WriteFile writes rows to path in the configured or inferred format,
// creating parent directories.
func WriteFile(cfg types.OutputConfig, rows []types.ResultRow) error {
	format, err := FormatFor(cfg.Path, cfg.Format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(cfg.Path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", cfg.Path, err)
	}
	if err := Write(f, format, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write encodes rows to w.
func Write(w io.Writer, format string, rows []types.ResultRow) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	case FormatYAML:
		return WriteYAML(w, rows)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// WriteCSV writes a header line and one record per row.
func WriteCSV(w io.Writer, rows []types.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.Identifier, r.Title, r.Stage1, r.Stage2, strconv.FormatFloat(r.Score, 'f', -1, 64)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing CSV row %s: %w", r.Identifier, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []types.ResultRow) error {
	if rows == nil {
		rows = []types.ResultRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

// WriteYAML writes rows as a YAML sequence.
func WriteYAML(w io.Writer, rows []types.ResultRow) error {
	if rows == nil {
		rows = []types.ResultRow{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// FormatTable writes rows as a human-readable table.
func FormatTable(rows []types.ResultRow, w io.Writer) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-6s  %-10s  %-10s  %-28s  %s\n",
		"Rank", "Score", "Stage 1", "Stage 2", "Identifier", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range rows {
		fmt.Fprintf(w, "%-4d  %-6.3f  %-10s  %-10s  %-28s  %s\n",
			i+1, r.Score, truncate(r.Stage1, 10), truncate(r.Stage2, 10),
			truncate(r.Identifier, 28), truncate(r.Title, 50))
	}
	fmt.Fprintf(w, "\n%d results\n", len(rows))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
