package monitor

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/integrity.report/internal/ili"
)

// viridis palette shared by the scatter charts.
var visualMapColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// handleAlignmentChart renders the landmark offset profile of the most
// recent alignment for a run pair: one point per matched landmark pair,
// x = position in run A, y = odometer offset between the runs at that
// landmark. A drifting offset curve is normal; discontinuities are not.
// Query params: run_a, run_b (both required).
func (ws *WebServer) handleAlignmentChart(w http.ResponseWriter, r *http.Request) {
	sa, errMsg := ws.latestFor(r)
	if errMsg != "" {
		ws.writeJSONError(w, http.StatusNotFound, errMsg)
		return
	}

	pairs, err := ws.db.AlignmentPairs(sa.AlignmentID)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load pairs: %v", err))
		return
	}
	if len(pairs) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "alignment has no matched pairs")
		return
	}

	data := make([]opts.ScatterData, 0, len(pairs))
	maxAbsOffset := 0.0
	for _, p := range pairs {
		offset := p.PositionB - p.PositionA
		if math.Abs(offset) > maxAbsOffset {
			maxAbsOffset = math.Abs(offset)
		}
		data = append(data, opts.ScatterData{Value: []interface{}{p.PositionA, offset}})
	}
	pad := maxAbsOffset * 1.05
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Alignment Offset Profile", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Landmark Offset Profile",
			Subtitle: fmt.Sprintf("%s vs %s | pairs=%d match_rate=%.1f%% rmse=%.2f", sa.RunA, sa.RunB, len(pairs), sa.MatchRate, sa.RMSE),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Position in earlier run (ft)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Offset (ft)", NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("offset", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	renderChart(w, scatter, ws)
}

// handleMatchChart renders the matched defects of the most recent
// alignment as a scatter along the pipeline, coloured by similarity.
// Query params: run_a, run_b (both required).
func (ws *WebServer) handleMatchChart(w http.ResponseWriter, r *http.Request) {
	sa, errMsg := ws.latestFor(r)
	if errMsg != "" {
		ws.writeJSONError(w, http.StatusNotFound, errMsg)
		return
	}

	matches, err := ws.db.MatchesForAlignment(sa.AlignmentID)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load matches: %v", err))
		return
	}
	if len(matches) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "alignment has no matches")
		return
	}

	defects, err := ws.db.DefectsForRun(sa.RunB)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load defects: %v", err))
		return
	}
	byID := make(map[string]ili.Defect, len(defects))
	for _, d := range defects {
		byID[d.ID] = d
	}

	data := make([]opts.ScatterData, 0, len(matches))
	high, medium, low := 0, 0, 0
	for _, m := range matches {
		d, ok := byID[m.DefectB]
		if !ok {
			continue
		}
		switch m.Confidence {
		case ili.ConfidenceHigh:
			high++
		case ili.ConfidenceMedium:
			medium++
		default:
			low++
		}
		data = append(data, opts.ScatterData{Value: []interface{}{d.Position, d.Clock, m.Similarity}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Defect Matches", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Matched Defects",
			Subtitle: fmt.Sprintf("%s vs %s | high=%d medium=%d low=%d", sa.RunA, sa.RunB, high, medium, low),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Position (ft)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 12, Name: "Clock (h)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: visualMapColors},
		}),
	)
	scatter.AddSeries("matches", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	renderChart(w, scatter, ws)
}

// handleGrowthChart renders per-match depth growth rates as a bar
// chart, ordered worst first. Rapid growers cross the annotated
// threshold line visually by magnitude alone.
// Query params: run_a, run_b (both required); limit (optional, default 40).
func (ws *WebServer) handleGrowthChart(w http.ResponseWriter, r *http.Request) {
	sa, errMsg := ws.latestFor(r)
	if errMsg != "" {
		ws.writeJSONError(w, http.StatusNotFound, errMsg)
		return
	}

	growth, err := ws.db.GrowthForAlignment(sa.AlignmentID)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load growth records: %v", err))
		return
	}
	if len(growth) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "alignment has no growth records")
		return
	}

	total := len(growth)
	rapid := 0
	for _, g := range growth {
		if g.RapidGrowth {
			rapid++
		}
	}

	limit := 40
	if total < limit {
		limit = total
	}
	// GrowthForAlignment orders by depth rate descending already
	growth = growth[:limit]

	x := make([]string, 0, len(growth))
	y := make([]opts.BarData, 0, len(growth))
	for _, g := range growth {
		x = append(x, g.MatchID)
		y = append(y, opts.BarData{Value: g.DepthRate})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Depth Growth", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Depth Growth Rate",
			Subtitle: fmt.Sprintf("%s vs %s | showing %d of %d, rapid=%d", sa.RunA, sa.RunB, limit, total, rapid),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%pt / year", NameLocation: "middle", NameGap: 40}),
	)
	bar.SetXAxis(x).AddSeries("depth growth", y)

	renderChart(w, bar, ws)
}

type renderable interface {
	Render(w io.Writer) error
}

func renderChart(w http.ResponseWriter, chart renderable, ws *WebServer) {
	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
