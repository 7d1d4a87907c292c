// Package api is the JSON surface of the reconciliation service:
// run management, survey ingestion, triggering reconciliations, and
// reading back stored results.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/integrity.report/internal/db"
	"github.com/banshee-data/integrity.report/internal/httputil"
	"github.com/banshee-data/integrity.report/internal/ili"
	"github.com/banshee-data/integrity.report/internal/ingest"
	"github.com/banshee-data/integrity.report/internal/monitoring"
	"github.com/banshee-data/integrity.report/internal/notify"
	"github.com/banshee-data/integrity.report/internal/version"
)

// Server holds the dependencies of the API handlers.
type Server struct {
	db         *db.DB
	reconciler *ili.Reconciler
	notifier   *notify.Notifier

	// dataDir restricts ingest file paths when non-empty.
	dataDir string
}

// NewServer wires the API over the given stores and pipeline.
func NewServer(database *db.DB, reconciler *ili.Reconciler, notifier *notify.Notifier, dataDir string) *Server {
	return &Server{
		db:         database,
		reconciler: reconciler,
		notifier:   notifier,
		dataDir:    dataDir,
	}
}

// ServeMux returns the route table. Mounted by the caller, typically
// under /api.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/reconcile", s.handleReconcile)
	mux.HandleFunc("/alignment", s.handleAlignment)
	mux.HandleFunc("/matches", s.handleMatches)
	mux.HandleFunc("/growth", s.handleGrowth)
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

// runRequest is the POST /runs body.
type runRequest struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	InspectionDate string `json:"inspection_date"` // RFC 3339 date
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		runs, err := s.db.ListRuns()
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
			return
		}
		if runs == nil {
			runs = []db.Run{}
		}
		httputil.WriteJSON(w, http.StatusOK, runs)

	case http.MethodPost:
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.ID == "" {
			httputil.BadRequest(w, "run id is required")
			return
		}
		date, err := time.Parse("2006-01-02", req.InspectionDate)
		if err != nil {
			httputil.BadRequest(w, "inspection_date must be YYYY-MM-DD")
			return
		}
		run := db.Run{ID: req.ID, Label: req.Label, InspectionDate: date}
		if err := s.db.InsertRun(run); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to insert run: %v", err))
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, run)

	default:
		httputil.MethodNotAllowed(w)
	}
}

// ingestRequest is the POST /ingest body. Paths are resolved on the
// server's filesystem, restricted to the configured data directory.
type ingestRequest struct {
	RunID         string `json:"run_id"`
	LandmarksPath string `json:"landmarks_path,omitempty"`
	DefectsPath   string `json:"defects_path,omitempty"`
	DistanceUnit  string `json:"distance_unit,omitempty"`
}

type ingestResponse struct {
	RunID     string         `json:"run_id"`
	Landmarks *ingest.Report `json:"landmarks,omitempty"`
	Defects   *ingest.Report `json:"defects,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.RunID == "" {
		httputil.BadRequest(w, "run_id is required")
		return
	}
	if req.LandmarksPath == "" && req.DefectsPath == "" {
		httputil.BadRequest(w, "at least one of landmarks_path or defects_path is required")
		return
	}
	if _, err := s.db.GetRun(req.RunID); err != nil {
		httputil.NotFound(w, fmt.Sprintf("unknown run %q", req.RunID))
		return
	}

	opts := ingest.Options{BaseDir: s.dataDir, DistanceUnit: req.DistanceUnit}
	resp := ingestResponse{RunID: req.RunID}

	if req.LandmarksPath != "" {
		landmarks, rep, err := ingest.LoadLandmarks(req.LandmarksPath, req.RunID, opts)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("load landmarks: %v", err))
			return
		}
		if err := s.db.InsertLandmarks(landmarks); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("store landmarks: %v", err))
			return
		}
		resp.Landmarks = rep
	}

	if req.DefectsPath != "" {
		defects, rep, err := ingest.LoadDefects(req.DefectsPath, req.RunID, opts)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("load defects: %v", err))
			return
		}
		if err := s.db.InsertDefects(defects); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("store defects: %v", err))
			return
		}
		resp.Defects = rep
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// reconcileRequest is the POST /reconcile body. The inspection gap is
// derived from the stored run dates when GapYears is zero.
type reconcileRequest struct {
	RunA     string  `json:"run_a"`
	RunB     string  `json:"run_b"`
	GapYears float64 `json:"gap_years,omitempty"`
}

type reconcileResponse struct {
	AlignmentID string               `json:"alignment_id"`
	Result      *ili.ReconcileResult `json:"result"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.RunA == "" || req.RunB == "" {
		httputil.BadRequest(w, "run_a and run_b are required")
		return
	}

	pair, errMsg, status := s.loadRunPair(req)
	if errMsg != "" {
		httputil.WriteJSONError(w, status, errMsg)
		return
	}

	res, err := s.reconciler.Reconcile(*pair)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("reconcile failed: %v", err))
		return
	}

	alignmentID, err := s.db.SaveReconcileResult(res)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to store result: %v", err))
		return
	}
	monitoring.Logf("stored reconciliation %s for %s/%s (match rate %.1f%%)",
		alignmentID, req.RunA, req.RunB, res.Alignment.MatchRate)

	s.notifier.ReconcileComplete(alignmentID, res)

	httputil.WriteJSON(w, http.StatusOK, reconcileResponse{AlignmentID: alignmentID, Result: res})
}

// loadRunPair assembles the pipeline input for a reconcile request from
// the stores.
func (s *Server) loadRunPair(req reconcileRequest) (*ili.RunPair, string, int) {
	runA, err := s.db.GetRun(req.RunA)
	if err != nil {
		return nil, fmt.Sprintf("unknown run %q", req.RunA), http.StatusNotFound
	}
	runB, err := s.db.GetRun(req.RunB)
	if err != nil {
		return nil, fmt.Sprintf("unknown run %q", req.RunB), http.StatusNotFound
	}

	landmarksA, err := s.db.LandmarksForRun(req.RunA)
	if err != nil {
		return nil, fmt.Sprintf("load landmarks for %q: %v", req.RunA, err), http.StatusInternalServerError
	}
	landmarksB, err := s.db.LandmarksForRun(req.RunB)
	if err != nil {
		return nil, fmt.Sprintf("load landmarks for %q: %v", req.RunB, err), http.StatusInternalServerError
	}
	defectsA, err := s.db.DefectsForRun(req.RunA)
	if err != nil {
		return nil, fmt.Sprintf("load defects for %q: %v", req.RunA, err), http.StatusInternalServerError
	}
	defectsB, err := s.db.DefectsForRun(req.RunB)
	if err != nil {
		return nil, fmt.Sprintf("load defects for %q: %v", req.RunB, err), http.StatusInternalServerError
	}

	gap := req.GapYears
	if gap == 0 && !runA.InspectionDate.IsZero() && !runB.InspectionDate.IsZero() {
		gap = runB.InspectionDate.Sub(runA.InspectionDate).Hours() / (24 * 365.25)
	}

	return &ili.RunPair{
		RunA:               req.RunA,
		RunB:               req.RunB,
		LandmarksA:         landmarksA,
		LandmarksB:         landmarksB,
		DefectsA:           defectsA,
		DefectsB:           defectsB,
		InspectionGapYears: gap,
	}, "", 0
}

// latestAlignment resolves run_a/run_b query params to the newest
// stored alignment.
func (s *Server) latestAlignment(w http.ResponseWriter, r *http.Request) *db.StoredAlignment {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return nil
	}
	runA := r.URL.Query().Get("run_a")
	runB := r.URL.Query().Get("run_b")
	if runA == "" || runB == "" {
		httputil.BadRequest(w, "run_a and run_b query parameters are required")
		return nil
	}
	sa, err := s.db.LatestAlignment(runA, runB)
	if err != nil {
		httputil.NotFound(w, fmt.Sprintf("no stored alignment for %s/%s", runA, runB))
		return nil
	}
	return sa
}

func (s *Server) handleAlignment(w http.ResponseWriter, r *http.Request) {
	sa := s.latestAlignment(w, r)
	if sa == nil {
		return
	}
	pairs, err := s.db.AlignmentPairs(sa.AlignmentID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("load pairs: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		*db.StoredAlignment
		Pairs []ili.MatchedPair `json:"pairs"`
	}{sa, pairs})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	sa := s.latestAlignment(w, r)
	if sa == nil {
		return
	}
	matches, err := s.db.MatchesForAlignment(sa.AlignmentID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("load matches: %v", err))
		return
	}
	unmatched, err := s.db.UnmatchedForAlignment(sa.AlignmentID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("load unmatched: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		AlignmentID string                `json:"alignment_id"`
		Matches     []ili.Match           `json:"matches"`
		Unmatched   []ili.UnmatchedDefect `json:"unmatched"`
	}{sa.AlignmentID, matches, unmatched})
}

func (s *Server) handleGrowth(w http.ResponseWriter, r *http.Request) {
	sa := s.latestAlignment(w, r)
	if sa == nil {
		return
	}
	growth, err := s.db.GrowthForAlignment(sa.AlignmentID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("load growth: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		AlignmentID string             `json:"alignment_id"`
		Growth      []ili.GrowthRecord `json:"growth"`
	}{sa.AlignmentID, growth})
}
