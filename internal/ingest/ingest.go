// Package ingest loads vendor survey exports (CSV) into pipeline types.
// Vendors disagree on units, clock notation and column order, so the
// loaders normalise everything to canonical feet and decimal clock hours
// and report per-row rejections instead of failing whole files.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/integrity.report/internal/ili"
	"github.com/banshee-data/integrity.report/internal/security"
	"github.com/banshee-data/integrity.report/internal/units"
)

// Options control how a survey file is read.
type Options struct {
	// BaseDir, when set, restricts the file path to that directory.
	BaseDir string
	// DistanceUnit is the unit of positional columns in the file.
	// Empty means feet.
	DistanceUnit string
}

// Report summarises a load: how many rows were seen, how many survived
// validation, and a warning per rejected row.
type Report struct {
	Rows     int      `json:"rows"`
	Loaded   int      `json:"loaded"`
	Rejected int      `json:"rejected"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *Report) reject(line int, format string, args ...interface{}) {
	r.Rejected++
	r.Warnings = append(r.Warnings, fmt.Sprintf("row %d: %s", line, fmt.Sprintf(format, args...)))
}

// LoadLandmarks reads a landmark CSV for runID. Required columns:
// id, position, kind. Landmarks are returned sorted by position.
func LoadLandmarks(path, runID string, opts Options) ([]ili.Landmark, *Report, error) {
	rows, header, rep, err := openCSV(path, opts, []string{"id", "position", "kind"})
	if err != nil {
		return nil, nil, err
	}

	var out []ili.Landmark
	for i, row := range rows {
		line := i + 2 // header is line 1
		rep.Rows++

		id := strings.TrimSpace(row[header["id"]])
		if id == "" {
			rep.reject(line, "missing id")
			continue
		}
		pos, err := strconv.ParseFloat(strings.TrimSpace(row[header["position"]]), 64)
		if err != nil {
			rep.reject(line, "invalid position %q", row[header["position"]])
			continue
		}
		if pos < 0 {
			rep.reject(line, "negative position %g", pos)
			continue
		}

		out = append(out, ili.Landmark{
			ID:       id,
			RunID:    runID,
			Position: units.ToFeet(pos, opts.DistanceUnit),
			Kind:     parseLandmarkKind(row[header["kind"]]),
		})
		rep.Loaded++
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Position < out[b].Position })
	return out, rep, nil
}

// LoadDefects reads a defect CSV for runID. Required columns: id,
// position, clock, depth_pct, length, width, kind.
func LoadDefects(path, runID string, opts Options) ([]ili.Defect, *Report, error) {
	required := []string{"id", "position", "clock", "depth_pct", "length", "width", "kind"}
	rows, header, rep, err := openCSV(path, opts, required)
	if err != nil {
		return nil, nil, err
	}

	var out []ili.Defect
	for i, row := range rows {
		line := i + 2
		rep.Rows++

		id := strings.TrimSpace(row[header["id"]])
		if id == "" {
			rep.reject(line, "missing id")
			continue
		}
		pos, err := strconv.ParseFloat(strings.TrimSpace(row[header["position"]]), 64)
		if err != nil || pos < 0 {
			rep.reject(line, "invalid position %q", row[header["position"]])
			continue
		}
		clock, err := units.ParseClock(row[header["clock"]])
		if err != nil {
			rep.reject(line, "%v", err)
			continue
		}
		depth, err := strconv.ParseFloat(strings.TrimSpace(row[header["depth_pct"]]), 64)
		if err != nil || depth < 0 || depth > 100 {
			rep.reject(line, "depth_pct %q outside [0, 100]", row[header["depth_pct"]])
			continue
		}
		length, err := strconv.ParseFloat(strings.TrimSpace(row[header["length"]]), 64)
		if err != nil || length < 0 {
			rep.reject(line, "invalid length %q", row[header["length"]])
			continue
		}
		width, err := strconv.ParseFloat(strings.TrimSpace(row[header["width"]]), 64)
		if err != nil || width < 0 {
			rep.reject(line, "invalid width %q", row[header["width"]])
			continue
		}

		out = append(out, ili.Defect{
			ID:       id,
			RunID:    runID,
			Position: units.ToFeet(pos, opts.DistanceUnit),
			Clock:    clock,
			DepthPct: depth,
			Length:   length,
			Width:    width,
			Kind:     parseDefectKind(row[header["kind"]]),
		})
		rep.Loaded++
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Position < out[b].Position })
	return out, rep, nil
}

// openCSV validates the path, reads all records and maps the required
// header columns to indices. Unknown extra columns are ignored.
func openCSV(path string, opts Options, required []string) ([][]string, map[string]int, *Report, error) {
	if opts.DistanceUnit != "" && !units.IsValidDistance(opts.DistanceUnit) {
		return nil, nil, nil, fmt.Errorf("unknown distance unit %q (accepted: %s)", opts.DistanceUnit, units.ValidDistanceUnitsString())
	}
	if opts.BaseDir != "" {
		if err := security.ValidatePathWithinDirectory(path, opts.BaseDir); err != nil {
			return nil, nil, nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open survey file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	headerRow, err := r.Read()
	if err == io.EOF {
		return nil, nil, nil, fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read header: %w", err)
	}

	header := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range required {
		if _, ok := header[col]; !ok {
			return nil, nil, nil, fmt.Errorf("%s: missing required column %q", path, col)
		}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, header, &Report{}, nil
}

func parseLandmarkKind(s string) ili.LandmarkKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weld", "girth_weld", "gw":
		return ili.LandmarkWeld
	case "valve":
		return ili.LandmarkValve
	case "tee", "fitting":
		return ili.LandmarkTee
	default:
		return ili.LandmarkOther
	}
}

func parseDefectKind(s string) ili.DefectKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "external_corrosion", "ext_corrosion", "external corrosion", "ml_ext":
		return ili.DefectExternalCorrosion
	case "internal_corrosion", "int_corrosion", "internal corrosion", "ml_int":
		return ili.DefectInternalCorrosion
	case "dent":
		return ili.DefectDent
	case "crack", "crack_like", "crack-like":
		return ili.DefectCrack
	default:
		return ili.DefectOther
	}
}
