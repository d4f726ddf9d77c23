package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/daniacca/molgrid/internal/grid"
	"github.com/daniacca/molgrid/internal/reaction"
)

// ChartBuilder provides a fluent API for building chart configurations.
// A chart is a set of molecule columns driven by one reaction scheduler.
type ChartBuilder struct {
	name        string
	maxRowIndex int
	fade        time.Duration
	dropSpeed   float64
	types       []string
	counts      map[string]int
	notifiers   []string
}

// NewChart creates a chart builder with the given name. Columns default to
// ten rows, a 500ms fade and a drop speed of 10 rows per second.
func NewChart(name string) *ChartBuilder {
	return &ChartBuilder{
		name:        name,
		maxRowIndex: 9,
		fade:        500 * time.Millisecond,
		dropSpeed:   10,
		counts:      make(map[string]int),
	}
}

// Type adds a molecule type, and its column, to the chart.
func (cb *ChartBuilder) Type(name string) *ChartBuilder {
	cb.types = append(cb.types, name)
	return cb
}

// Types adds several molecule types in order.
func (cb *ChartBuilder) Types(names ...string) *ChartBuilder {
	cb.types = append(cb.types, names...)
	return cb
}

// Count sets the initial number of molecules of a type.
func (cb *ChartBuilder) Count(name string, count int) *ChartBuilder {
	cb.counts[name] = count
	return cb
}

// MaxRowIndex sets the highest row of every column. Capacity is one more.
func (cb *ChartBuilder) MaxRowIndex(row int) *ChartBuilder {
	cb.maxRowIndex = row
	return cb
}

// FadeDuration sets how long molecules take to fade in and out.
func (cb *ChartBuilder) FadeDuration(d time.Duration) *ChartBuilder {
	cb.fade = d
	return cb
}

// DropSpeed sets the falling speed in rows per second.
func (cb *ChartBuilder) DropSpeed(rowsPerSecond float64) *ChartBuilder {
	cb.dropSpeed = rowsPerSecond
	return cb
}

// Notifiers routes the chart's events to the given notifier IDs.
// Notifiers must be registered with the server separately.
func (cb *ChartBuilder) Notifiers(ids ...string) *ChartBuilder {
	cb.notifiers = append(cb.notifiers, ids...)
	return cb
}

// Build converts the builder to a ChartConfig.
func (cb *ChartBuilder) Build() reaction.ChartConfig {
	counts := make(map[string]int, len(cb.counts))
	for k, v := range cb.counts {
		counts[k] = v
	}
	return reaction.ChartConfig{
		Name:           cb.name,
		MaxRowIndex:    cb.maxRowIndex,
		FadeDurationMs: cb.fade.Milliseconds(),
		DropSpeed:      cb.dropSpeed,
		Types:          slices.Clone(cb.types),
		Counts:         counts,
		Notifiers:      slices.Clone(cb.notifiers),
	}
}

// Validate checks the built configuration without contacting a server.
func (cb *ChartBuilder) Validate() error {
	return reaction.ValidateChartConfig(cb.Build())
}

// BalanceBuilder describes a four-category balance on a cols x rows grid.
type BalanceBuilder struct {
	cols, rows int
	seed       int64
	increasing [2]grid.ElementToBalance
	decreasing [2]grid.ElementToBalance
}

// NewBalance creates a balance request for a cols x rows grid.
func NewBalance(cols, rows int) *BalanceBuilder {
	return &BalanceBuilder{cols: cols, rows: rows}
}

// Seed sets the seed of the server-side pool shuffle.
func (bb *BalanceBuilder) Seed(seed int64) *BalanceBuilder {
	bb.seed = seed
	return bb
}

// Increasing sets growing category slot (0 or 1).
func (bb *BalanceBuilder) Increasing(slot, finalCount int, initial ...grid.Coordinate) *BalanceBuilder {
	bb.increasing[slot] = grid.ElementToBalance{InitialCoords: initial, FinalCount: finalCount}
	return bb
}

// Decreasing sets shrinking category slot (0 or 1).
func (bb *BalanceBuilder) Decreasing(slot, finalCount int, initial ...grid.Coordinate) *BalanceBuilder {
	bb.decreasing[slot] = grid.ElementToBalance{InitialCoords: initial, FinalCount: finalCount}
	return bb
}

type balanceBody struct {
	Cols       int                      `json:"cols"`
	Rows       int                      `json:"rows"`
	Seed       int64                    `json:"seed"`
	Increasing [2]grid.ElementToBalance `json:"increasing"`
	Decreasing [2]grid.ElementToBalance `json:"decreasing"`
}

func (bb *BalanceBuilder) body() balanceBody {
	return balanceBody{
		Cols:       bb.cols,
		Rows:       bb.rows,
		Seed:       bb.seed,
		Increasing: bb.increasing,
		Decreasing: bb.decreasing,
	}
}

// CountsReport is a chart's molecule count report.
type CountsReport struct {
	// Projected counts include every admitted sequence as if it had finished.
	Projected map[string]int `json:"counts"`
	Live      map[string]int `json:"live"`
	InFlight  int            `json:"in_flight"`
}

type started struct {
	Started bool `json:"started"`
}

// do sends body as JSON and decodes the response into out when out is not
// nil. Any status outside ok is an error.
func do(ctx context.Context, method, u string, body, out any, ok ...int) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if !slices.Contains(ok, resp.StatusCode) {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func chartURL(baseURL, chartID string, elem ...string) (string, error) {
	u, err := url.JoinPath(baseURL, append([]string{"chart", chartID}, elem...)...)
	if err != nil {
		return "", fmt.Errorf("failed to build URL: %w", err)
	}
	return u, nil
}

// CreateChart sends the chart configuration to the server, replacing any
// chart with the same ID.
func CreateChart(ctx context.Context, baseURL, chartID string, chart *ChartBuilder) error {
	u, err := chartURL(baseURL, chartID)
	if err != nil {
		return err
	}
	return do(ctx, http.MethodPost, u, chart.Build(), nil, http.StatusOK, http.StatusCreated)
}

// DeleteChart removes a chart from the server.
func DeleteChart(ctx context.Context, baseURL, chartID string) error {
	u, err := chartURL(baseURL, chartID)
	if err != nil {
		return err
	}
	return do(ctx, http.MethodDelete, u, nil, nil, http.StatusNoContent)
}

func start(ctx context.Context, baseURL, chartID, op string, body any) (bool, error) {
	u, err := chartURL(baseURL, chartID, op)
	if err != nil {
		return false, err
	}
	var resp started
	if err := do(ctx, http.MethodPost, u, body, &resp, http.StatusOK); err != nil {
		return false, err
	}
	return resp.Started, nil
}

// StartReaction adds one adding molecule that reacts with one reactsWith
// molecule to produce one producing molecule. It reports whether the
// scheduler accepted the reaction; a rejection is not an error.
func StartReaction(ctx context.Context, baseURL, chartID, adding, reactsWith, producing string) (bool, error) {
	return start(ctx, baseURL, chartID, "reaction", map[string]string{
		"adding":      adding,
		"reacts_with": reactsWith,
		"producing":   producing,
	})
}

// StartReactionFromExisting consumes one molecule already on the chart and
// produces the given types.
func StartReactionFromExisting(ctx context.Context, baseURL, chartID, consuming string, producing ...string) (bool, error) {
	if producing == nil {
		producing = []string{}
	}
	return start(ctx, baseURL, chartID, "reaction-from-existing", map[string]any{
		"consuming": consuming,
		"producing": producing,
	})
}

// Consume removes count molecules of a type.
func Consume(ctx context.Context, baseURL, chartID, moleculeType string, count int) (bool, error) {
	return start(ctx, baseURL, chartID, "consume", map[string]any{
		"type":  moleculeType,
		"count": count,
	})
}

// AddMolecules drops count molecules of a type, spread evenly over duration.
func AddMolecules(ctx context.Context, baseURL, chartID, moleculeType string, count int, duration time.Duration) (bool, error) {
	return start(ctx, baseURL, chartID, "add", map[string]any{
		"type":        moleculeType,
		"count":       count,
		"duration_ms": duration.Milliseconds(),
	})
}

// Counts returns the chart's projected and live counts.
func Counts(ctx context.Context, baseURL, chartID string) (CountsReport, error) {
	u, err := chartURL(baseURL, chartID, "counts")
	if err != nil {
		return CountsReport{}, err
	}
	var counts CountsReport
	if err := do(ctx, http.MethodGet, u, nil, &counts, http.StatusOK); err != nil {
		return CountsReport{}, err
	}
	return counts, nil
}

// SaveSnapshot asks the server to persist the chart's current state.
func SaveSnapshot(ctx context.Context, baseURL, chartID string) error {
	u, err := chartURL(baseURL, chartID, "snapshot")
	if err != nil {
		return err
	}
	return do(ctx, http.MethodPost, u, nil, nil, http.StatusOK)
}

// Balance runs the fair transfer balancer on the server.
func Balance(ctx context.Context, baseURL string, balance *BalanceBuilder) (grid.Balanced, error) {
	u, err := url.JoinPath(baseURL, "grid", "balance")
	if err != nil {
		return grid.Balanced{}, fmt.Errorf("failed to build URL: %w", err)
	}
	var out grid.Balanced
	if err := do(ctx, http.MethodPost, u, balance.body(), &out, http.StatusOK); err != nil {
		return grid.Balanced{}, err
	}
	return out, nil
}

// RegisterWebhook registers a webhook notifier that charts can route their
// events to.
func RegisterWebhook(ctx context.Context, baseURL, id, webhookURL string, headers map[string]string) error {
	u, err := url.JoinPath(baseURL, "notifiers")
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}
	body := map[string]any{
		"type": "webhook",
		"id":   id,
		"config": map[string]any{
			"url":     webhookURL,
			"headers": headers,
		},
	}
	return do(ctx, http.MethodPost, u, body, nil, http.StatusCreated)
}
