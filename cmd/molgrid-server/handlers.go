package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/daniacca/molgrid/internal/persistence/sqlite"
	"github.com/daniacca/molgrid/internal/reaction"
	"github.com/daniacca/molgrid/internal/reaction/notifiers"
)

// requestTimeout bounds storage calls made while serving a request.
const requestTimeout = 10 * time.Second

// extractChartID extracts the chart ID and the remaining path from
// /chart/{id}/... paths.
func extractChartID(path string) (reaction.ChartID, string) {
	rest, ok := strings.CutPrefix(path, "/chart/")
	if !ok {
		return "", ""
	}
	id, remaining, found := strings.Cut(rest, "/")
	if found {
		remaining = "/" + remaining
	}
	return reaction.ChartID(id), remaining
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleListCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"charts": s.manager.ListCharts()})
}

// handleChartRoutes routes every /chart/{id}... request
func (s *Server) handleChartRoutes(w http.ResponseWriter, r *http.Request) {
	id, remaining := extractChartID(r.URL.Path)
	if id == "" {
		http.Error(w, "chart ID is required", http.StatusBadRequest)
		return
	}

	if remaining == "" || remaining == "/" {
		switch r.Method {
		case http.MethodPost:
			s.handleCreateChart(w, r, id)
		case http.MethodGet:
			s.handleGetChart(w, r, id)
		case http.MethodDelete:
			s.handleDeleteChart(w, r, id)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	chart, ok := s.manager.GetChart(id)
	if !ok {
		http.Error(w, "chart not found", http.StatusNotFound)
		return
	}

	switch {
	case remaining == "/reaction" && r.Method == http.MethodPost:
		s.handleReaction(w, r, chart)
	case remaining == "/reaction-from-existing" && r.Method == http.MethodPost:
		s.handleReactionFromExisting(w, r, chart)
	case remaining == "/consume" && r.Method == http.MethodPost:
		s.handleConsume(w, r, chart)
	case remaining == "/add" && r.Method == http.MethodPost:
		s.handleAdd(w, r, chart)
	case remaining == "/reset" && r.Method == http.MethodPost:
		s.handleReset(w, r, chart)
	case remaining == "/counts" && r.Method == http.MethodGet:
		s.handleCounts(w, r, chart)
	case remaining == "/molecules" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, chart.Scheduler.Molecules())
	case remaining == "/sequences" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, chart.Scheduler.Sequences())
	case remaining == "/snapshot" && r.Method == http.MethodPost:
		s.handleSaveSnapshot(w, r, chart)
	case remaining == "/snapshot" && r.Method == http.MethodGet:
		s.handleGetSnapshot(w, r, chart)
	case remaining == "/snapshot/restore" && r.Method == http.MethodPost:
		s.handleRestoreSnapshot(w, r, chart)
	case remaining == "/history" && r.Method == http.MethodGet:
		s.handleHistory(w, r, chart)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleCreateChart(w http.ResponseWriter, r *http.Request, id reaction.ChartID) {
	var cfg reaction.ChartConfig
	if err := decodeBody(r, &cfg); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	chart, created, err := s.putChart(id, cfg)
	if err != nil {
		s.logger.Warnf("chart %s rejected: %v", id, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, chart.Config())
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request, id reaction.ChartID) {
	chart, ok := s.manager.GetChart(id)
	if !ok {
		http.Error(w, "chart not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, chart.Config())
}

func (s *Server) handleDeleteChart(w http.ResponseWriter, r *http.Request, id reaction.ChartID) {
	if err := s.manager.DeleteChart(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reactionRequest struct {
	Adding     reaction.MoleculeType `json:"adding"`
	ReactsWith reaction.MoleculeType `json:"reacts_with"`
	Producing  reaction.MoleculeType `json:"producing"`
}

type reactionFromExistingRequest struct {
	Consuming reaction.MoleculeType   `json:"consuming"`
	Producing []reaction.MoleculeType `json:"producing"`
}

type consumeRequest struct {
	Type  reaction.MoleculeType `json:"type"`
	Count *int                  `json:"count,omitempty"`
}

type addRequest struct {
	Type       reaction.MoleculeType `json:"type"`
	Count      int                   `json:"count"`
	DurationMs int64                 `json:"duration_ms"`
}

type resetRequest struct {
	Counts map[reaction.MoleculeType]int `json:"counts"`
}

type startedResponse struct {
	Started bool `json:"started"`
}

func (s *Server) handleReaction(w http.ResponseWriter, r *http.Request, chart *reaction.Chart) {
	var req reactionRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	started := chart.Scheduler.StartReaction(req.Adding, req.ReactsWith, req.Producing)
	writeJSON(w, http.StatusOK, startedResponse{Started: started})
}

func (s *Server) handleReactionFromExisting(w http.ResponseWriter, r *http.Request, chart *reaction.Chart) {
	var req reactionFromExistingRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	started := chart.Scheduler.StartReactionFromExisting(req.Consuming, req.Producing...)
	writeJSON(w, http.StatusOK, startedResponse{Started: started})
}

func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request, chart *reaction.Chart) {
	var req consumeRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	count := 1
	if req.Count != nil {
		count = *req.Count
	}
	if count < 0 {
		http.Error(w, "count must be >= 0", http.StatusBadRequest)
		return
	}
	started := chart.Scheduler.Consume(req.Type, count)
	writeJSON(w, http.StatusOK, startedResponse{Started: started})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request, chart *reaction.Chart) {
	var req addRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Count < 0 || req.DurationMs < 0 {
		http.Error(w, "count and duration_ms must be >= 0", http.StatusBadRequest)
		return
	}
	started := chart.Scheduler.AddMolecules(req.Type, req.Count, time.Duration(req.DurationMs)*time.Millisecond)
	writeJSON(w, http.StatusOK, startedResponse{Started: started})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, chart *reaction.Chart) {
	var req resetRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := chart.Scheduler.Reset(req.Counts); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.handleCounts(w, r, chart)
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request, chart *reaction.Chart) {
	writeJSON(w, http.StatusOK, map[string]any{
		"counts":    chart.Scheduler.Counts(),
		"live":      chart.Scheduler.LiveCounts(),
		"in_flight": chart.Scheduler.InFlight(),
	})
}

// handleSaveSnapshot writes the snapshot to the snapshot dir and the sqlite
// history, whichever are configured.
func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request, chart *reaction.Chart) {
	dir, history := s.storage()
	if dir == "" && history == nil {
		http.Error(w, "snapshot storage not configured", http.StatusInternalServerError)
		return
	}

	snap := reaction.TakeSnapshot(chart)
	resp := map[string]any{"status": "ok"}

	if dir != "" {
		path, err := reaction.SaveSnapshotFile(dir, snap)
		if err != nil {
			s.logger.Errorf("failed to save snapshot for chart %s: %v", chart.ID, err)
			http.Error(w, "failed to save snapshot: "+err.Error(), http.StatusInternalServerError)
			return
		}
		resp["path"] = path
	}

	if history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		historyID, err := history.Save(ctx, snap)
		if err != nil {
			s.logger.Errorf("failed to record snapshot history for chart %s: %v", chart.ID, err)
			http.Error(w, "failed to record snapshot: "+err.Error(), http.StatusInternalServerError)
			return
		}
		resp["history_id"] = historyID
	}

	s.logger.Infof("snapshot saved for chart %s", chart.ID)
	writeJSON(w, http.StatusOK, resp)
}

// loadLatestSnapshot prefers the snapshot file, falling back to the newest
// history entry.
func (s *Server) loadLatestSnapshot(ctx context.Context, id reaction.ChartID) (reaction.Snapshot, bool, error) {
	dir, history := s.storage()
	if dir != "" {
		snap, err := reaction.LoadSnapshotFile(dir, id)
		if err == nil {
			return snap, true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return reaction.Snapshot{}, false, err
		}
	}
	if history != nil {
		snap, err := history.Latest(ctx, id)
		if err == nil {
			return snap, true, nil
		}
		if !errors.Is(err, sqlite.ErrNotFound) {
			return reaction.Snapshot{}, false, err
		}
	}
	return reaction.Snapshot{}, false, nil
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request, chart *reaction.Chart) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, found, err := s.loadLatestSnapshot(ctx, chart.ID)
	if err != nil {
		http.Error(w, "failed to load snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "snapshot not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request, chart *reaction.Chart) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, found, err := s.loadLatestSnapshot(ctx, chart.ID)
	if err != nil {
		http.Error(w, "failed to load snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "snapshot not found", http.StatusNotFound)
		return
	}
	if err := reaction.RestoreSnapshot(chart, snap); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Infof("chart %s restored from snapshot taken at %s", chart.ID, snap.TakenAt.Format(time.RFC3339))
	s.handleCounts(w, r, chart)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, chart *reaction.Chart) {
	_, history := s.storage()
	if history == nil {
		http.Error(w, "snapshot history not configured", http.StatusInternalServerError)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	entries, err := history.History(ctx, chart.ID, limit)
	if err != nil {
		http.Error(w, "failed to read history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleNotifiersRoutes handles /notifiers and /notifiers/{id}
func (s *Server) handleNotifiersRoutes(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/notifiers"), "/")

	switch {
	case id == "" && r.Method == http.MethodGet:
		s.handleListNotifiers(w, r)
	case id == "" && r.Method == http.MethodPost:
		s.handleCreateNotifier(w, r)
	case id != "" && r.Method == http.MethodDelete:
		s.handleDeleteNotifier(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type notifierInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

func (s *Server) handleListNotifiers(w http.ResponseWriter, r *http.Request) {
	list := []notifierInfo{}
	for _, id := range s.notifications.ListNotifiers() {
		if n, ok := s.notifications.GetNotifier(id); ok {
			list = append(list, notifierInfo{ID: n.ID(), Type: n.Type()})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifiers": list})
}

type createNotifierRequest struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Config struct {
		URL     string            `json:"url"`
		Headers map[string]string `json:"headers,omitempty"`
	} `json:"config"`
}

func (s *Server) handleCreateNotifier(w http.ResponseWriter, r *http.Request) {
	var req createNotifierRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "notifier id is required", http.StatusBadRequest)
		return
	}

	var notifier reaction.Notifier
	switch req.Type {
	case "webhook":
		if req.Config.URL == "" {
			http.Error(w, "webhook url is required", http.StatusBadRequest)
			return
		}
		webhook := notifiers.NewWebhookNotifier(req.ID, req.Config.URL)
		for k, v := range req.Config.Headers {
			webhook.SetHeader(k, v)
		}
		notifier = webhook
	default:
		http.Error(w, "unsupported notifier type: "+req.Type, http.StatusBadRequest)
		return
	}

	if err := s.notifications.RegisterNotifier(notifier); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.logger.Infof("notifier %s (%s) registered", req.ID, req.Type)
	writeJSON(w, http.StatusCreated, notifierInfo{ID: notifier.ID(), Type: notifier.Type()})
}

func (s *Server) handleDeleteNotifier(w http.ResponseWriter, r *http.Request, id string) {
	if id == streamNotifierID {
		http.Error(w, "the websocket stream cannot be removed", http.StatusBadRequest)
		return
	}
	if err := s.notifications.UnregisterNotifier(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
