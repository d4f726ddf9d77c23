package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/daniacca/molgrid/internal/persistence/sqlite"
	"github.com/daniacca/molgrid/internal/reaction"
	"github.com/daniacca/molgrid/internal/reaction/notifiers"
)

// streamNotifierID is the ID under which the /ws stream is registered.
// Charts list it in their notifiers to publish events to websocket clients.
const streamNotifierID = "ws"

// Server holds the HTTP server state
type Server struct {
	manager       *reaction.ChartManager
	notifications *reaction.NotificationManager
	stream        *notifiers.WebSocketNotifier
	logger        *Logger

	mu          sync.RWMutex
	snapshotDir string
	history     *sqlite.Store
}

// NewServer creates a server with its own chart manager and notification
// pipeline. The websocket stream is always registered.
func NewServer(logger *Logger, workers int) *Server {
	if workers < 1 {
		workers = 1
	}
	notifications := reaction.NewNotificationManagerWithLogger(logger, workers)
	stream := notifiers.NewWebSocketNotifier(streamNotifierID)
	if err := notifications.RegisterNotifier(stream); err != nil {
		logger.Errorf("failed to register websocket stream: %v", err)
	}

	manager := reaction.NewChartManagerWithLogger(reaction.NewRealClock(), logger)
	manager.SetNotificationManager(notifications)

	return &Server{
		manager:       manager,
		notifications: notifications,
		stream:        stream,
		logger:        logger,
	}
}

// SetSnapshotDir sets the directory used for file snapshots. Empty disables
// them.
func (s *Server) SetSnapshotDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotDir = dir
}

// SetHistoryStore attaches the sqlite snapshot history.
func (s *Server) SetHistoryStore(store *sqlite.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = store
}

func (s *Server) storage() (string, *sqlite.Store) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotDir, s.history
}

// putChart creates the chart, replacing an existing chart with the same id.
// created is false when a chart was replaced.
func (s *Server) putChart(id reaction.ChartID, cfg reaction.ChartConfig) (chart *reaction.Chart, created bool, err error) {
	if err := reaction.ValidateChartConfig(cfg); err != nil {
		return nil, false, err
	}
	for _, nid := range cfg.Notifiers {
		if _, ok := s.notifications.GetNotifier(nid); !ok {
			return nil, false, fmt.Errorf("unknown notifier %q", nid)
		}
	}

	chart, replaced, err := s.manager.ReplaceChart(id, cfg)
	if err != nil {
		return nil, false, err
	}
	return chart, !replaced, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/charts", s.handleListCharts)
	mux.HandleFunc("/chart/", s.handleChartRoutes)
	mux.HandleFunc("/grid/", s.handleGridRoutes)
	mux.HandleFunc("/notifiers", s.handleNotifiersRoutes)
	mux.HandleFunc("/notifiers/", s.handleNotifiersRoutes)
	mux.Handle("/ws", s.stream)
	return mux
}

// Close stops every chart and the notification pipeline.
func (s *Server) Close(ctx context.Context) error {
	s.manager.Close()

	done := make(chan error, 1)
	go func() { done <- s.notifications.Close() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	_, history := s.storage()
	if history != nil {
		if cerr := history.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
