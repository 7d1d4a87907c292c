package monitor

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/integrity.report/internal/fsutil"
	"github.com/banshee-data/integrity.report/internal/ili"
	"github.com/banshee-data/integrity.report/internal/security"
)

// ResidualPlotter writes PNG summaries of a reconciliation to disk for
// offline review. Charts cover the raw odometer offset, the residual
// after correction, and the similarity distribution of the match set.
type ResidualPlotter struct {
	fs        fsutil.FileSystem
	outputDir string
}

// NewResidualPlotter writes plots under outputDir. A nil fs means the
// real filesystem.
func NewResidualPlotter(fs fsutil.FileSystem, outputDir string) *ResidualPlotter {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &ResidualPlotter{fs: fs, outputDir: outputDir}
}

// WriteAll produces every plot the result supports. Returns the list of
// files written.
func (rp *ResidualPlotter) WriteAll(res *ili.ReconcileResult) ([]string, error) {
	if res == nil || res.Alignment == nil {
		return nil, fmt.Errorf("no alignment to plot")
	}
	if err := rp.fs.MkdirAll(rp.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	prefix := security.SanitizeFilename(res.RunA) + "_" + security.SanitizeFilename(res.RunB)
	var written []string

	if len(res.Alignment.Pairs) > 0 {
		name := filepath.Join(rp.outputDir, prefix+"_offset.png")
		if err := rp.writeOffsetPlot(name, res.Alignment); err != nil {
			return written, err
		}
		written = append(written, name)

		name = filepath.Join(rp.outputDir, prefix+"_residual.png")
		if err := rp.writeResidualPlot(name, res.Alignment, res.CorrectedA); err != nil {
			return written, err
		}
		written = append(written, name)
	}

	if res.Matches != nil && len(res.Matches.Matches) > 0 {
		name := filepath.Join(rp.outputDir, prefix+"_similarity.png")
		if err := rp.writeSimilarityPlot(name, res.Matches); err != nil {
			return written, err
		}
		written = append(written, name)
	}

	return written, nil
}

// writeOffsetPlot draws the raw odometer offset at each matched
// landmark against position.
func (rp *ResidualPlotter) writeOffsetPlot(name string, ar *ili.AlignmentResult) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Odometer Offset: %s vs %s", ar.RunA, ar.RunB)
	p.X.Label.Text = "Position (ft)"
	p.Y.Label.Text = "Offset (ft)"

	pts := make(plotter.XYs, 0, len(ar.Pairs))
	for _, pair := range ar.Pairs {
		pts = append(pts, plotter.XY{X: pair.PositionA, Y: pair.PositionB - pair.PositionA})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 31, G: 158, B: 137, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("offset", line)
	p.Legend.Top = true

	return rp.save(p, name)
}

// writeResidualPlot draws what is left of the offset after correction.
// Flat near zero means the piecewise model captured the drift.
func (rp *ResidualPlotter) writeResidualPlot(name string, ar *ili.AlignmentResult, corrected []ili.Defect) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Post-Correction Residual: %s vs %s (RMSE %.2f)", ar.RunA, ar.RunB, ar.RMSE)
	p.X.Label.Text = "Position (ft)"
	p.Y.Label.Text = "Residual (ft)"

	// landmark residuals come out of the corrector exactly at the knots,
	// so plot the correction magnitude applied to each defect instead
	pts := make(plotter.XYs, 0, len(corrected))
	for _, d := range corrected {
		if !d.Corrected {
			continue
		}
		pts = append(pts, plotter.XY{X: d.Position, Y: d.CorrectedPosition - d.Position})
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 255, G: 82, B: 82, A: 255}
	scatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(scatter)
	p.Legend.Add("correction applied", scatter)
	p.Legend.Top = true

	return rp.save(p, name)
}

// writeSimilarityPlot draws the similarity of each match in descending
// order, with the confidence breakpoints visible as plateaus.
func (rp *ResidualPlotter) writeSimilarityPlot(name string, ms *ili.MatchSet) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Match Similarity: %s vs %s", ms.RunA, ms.RunB)
	p.X.Label.Text = "Match rank"
	p.Y.Label.Text = "Similarity"
	p.Y.Min = 0
	p.Y.Max = 1

	sims := make([]float64, 0, len(ms.Matches))
	for _, m := range ms.Matches {
		sims = append(sims, m.Similarity)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sims)))

	pts := make(plotter.XYs, 0, len(sims))
	for i, s := range sims {
		pts = append(pts, plotter.XY{X: float64(i + 1), Y: s})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 62, G: 73, B: 137, A: 255}
	line.Width = vg.Points(1.5)
	p.Add(line)

	return rp.save(p, name)
}

// save renders p as PNG through the configured filesystem.
func (rp *ResidualPlotter) save(p *plot.Plot, name string) error {
	wt, err := p.WriterTo(12*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	f, err := rp.fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}
