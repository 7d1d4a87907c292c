// Package notify posts reconciliation summaries to an operator-supplied
// webhook. Configured with -webhook on the server; a zero Notifier is a
// no-op so callers do not need to branch.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/integrity.report/internal/httputil"
	"github.com/banshee-data/integrity.report/internal/ili"
	"github.com/banshee-data/integrity.report/internal/monitoring"
)

// Payload is the JSON body posted to the webhook when a reconciliation
// run completes.
type Payload struct {
	AlignmentID  string    `json:"alignment_id"`
	RunA         string    `json:"run_a"`
	RunB         string    `json:"run_b"`
	MatchRate    float64   `json:"match_rate"`
	RMSE         float64   `json:"rmse"`
	Matched      int       `json:"matched"`
	NewDefects   int       `json:"new_defects"`
	Disappeared  int       `json:"disappeared"`
	RapidGrowth  int       `json:"rapid_growth"`
	Warnings     []string  `json:"warnings,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMsec int64     `json:"duration_msec"`
}

// Notifier posts payloads to a single webhook URL.
type Notifier struct {
	url    string
	client httputil.HTTPClient
}

// New returns a Notifier for url. An empty url disables delivery.
func New(url string, client httputil.HTTPClient) *Notifier {
	if client == nil {
		client = httputil.NewStandardClient(&http.Client{Timeout: 10 * time.Second})
	}
	return &Notifier{url: url, client: client}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// ReconcileComplete builds a summary payload from res and posts it.
// Delivery failures are logged, not returned; a flaky webhook must not
// fail the reconciliation itself.
func (n *Notifier) ReconcileComplete(alignmentID string, res *ili.ReconcileResult) {
	if !n.Enabled() || res == nil {
		return
	}

	rapid := 0
	for _, g := range res.Growth {
		if g.RapidGrowth {
			rapid++
		}
	}

	p := Payload{
		AlignmentID:  alignmentID,
		RunA:         res.RunA,
		RunB:         res.RunB,
		Warnings:     res.Warnings,
		CompletedAt:  time.Now().UTC(),
		DurationMsec: (res.AlignDuration + res.MatchDuration).Milliseconds(),
	}
	if res.Alignment != nil {
		p.MatchRate = res.Alignment.MatchRate
		p.RMSE = res.Alignment.RMSE
	}
	if res.Matches != nil {
		p.Matched = res.Matches.Stats.Matched
		p.NewDefects = res.Matches.Stats.New
		p.Disappeared = res.Matches.Stats.RepairedRemoved
	}
	p.RapidGrowth = rapid

	if err := n.post(p); err != nil {
		monitoring.Logf("webhook delivery failed for %s: %v", alignmentID, err)
	}
}

func (n *Notifier) post(p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
