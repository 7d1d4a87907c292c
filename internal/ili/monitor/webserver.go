// Package monitor serves debugging charts over stored reconciliation
// results. These are operator-facing HTML pages rendered server side,
// separate from the JSON API the UI consumes.
package monitor

import (
	"net/http"

	"github.com/banshee-data/integrity.report/internal/db"
	"github.com/banshee-data/integrity.report/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// WebServer renders the chart endpoints. It reads from the results
// database only, so one instance can be shared across requests.
type WebServer struct {
	db *db.DB
}

// NewWebServer creates a chart server over database.
func NewWebServer(database *db.DB) *WebServer {
	return &WebServer{db: database}
}

// RegisterRoutes mounts the chart handlers on mux.
func (ws *WebServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/charts/alignment", ws.handleAlignmentChart)
	mux.HandleFunc("/charts/matches", ws.handleMatchChart)
	mux.HandleFunc("/charts/growth", ws.handleGrowthChart)
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	httputil.WriteJSONError(w, status, msg)
}

// latestFor resolves the run pair from query params to the most recent
// stored alignment.
func (ws *WebServer) latestFor(r *http.Request) (*db.StoredAlignment, string) {
	runA := r.URL.Query().Get("run_a")
	runB := r.URL.Query().Get("run_b")
	if runA == "" || runB == "" {
		return nil, "run_a and run_b query parameters are required"
	}
	sa, err := ws.db.LatestAlignment(runA, runB)
	if err != nil {
		return nil, "no stored alignment for run pair"
	}
	return sa, ""
}
