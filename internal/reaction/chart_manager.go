package reaction

import (
	"fmt"
	"slices"
	"sync"
)

// ChartID is a unique identifier for a chart
type ChartID string

// eventBuffer is the subscription buffer used to forward a chart's events to
// the notification manager.
const eventBuffer = 256

// Chart is a named scheduler plus the notifiers its events are routed to.
type Chart struct {
	ID        ChartID
	Name      string
	Scheduler *Scheduler
	Notifiers []string

	stopForwarding func()
	forwardDone    chan struct{}
}

// Config returns the chart's current description.
func (c *Chart) Config() ChartConfig {
	return ChartConfigFrom(c.Name, c.Scheduler.Config(), c.Notifiers)
}

// ChartManager manages multiple charts, each isolated from the others
type ChartManager struct {
	mu     sync.RWMutex
	charts map[ChartID]*Chart
	clock  Clock
	logger Logger

	notificationManager *NotificationManager
}

// NewChartManager creates a chart manager whose schedulers share clock. A
// nil clock uses the wall clock.
func NewChartManager(clock Clock) *ChartManager {
	return NewChartManagerWithLogger(clock, NewNoOpLogger())
}

// NewChartManagerWithLogger creates a chart manager with a custom logger
func NewChartManagerWithLogger(clock Clock, logger Logger) *ChartManager {
	if clock == nil {
		clock = NewRealClock()
	}
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &ChartManager{
		charts: make(map[ChartID]*Chart),
		clock:  clock,
		logger: logger,
	}
}

// SetNotificationManager sets the manager that receives events of charts
// created afterwards.
func (cm *ChartManager) SetNotificationManager(nm *NotificationManager) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.notificationManager = nm
}

// CreateChart validates cfg and creates a chart under id.
// Returns an error if a chart with that ID already exists
func (cm *ChartManager) CreateChart(id ChartID, cfg ChartConfig) (*Chart, error) {
	if id == "" {
		return nil, fmt.Errorf("chart id is required")
	}
	sched, err := BuildChartFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.charts[id]; exists {
		return nil, fmt.Errorf("chart with id %s already exists", id)
	}
	chart, err := cm.newChartLocked(id, cfg, sched)
	if err != nil {
		return nil, err
	}
	cm.charts[id] = chart
	cm.logger.Infof("chart %s created: types=%v capacity=%d", id, sched.Types, sched.Capacity())
	return chart, nil
}

// ReplaceChart creates the chart under id, swapping out any chart already
// registered there in the same critical section. The old chart is torn down
// after the swap. replaced reports whether a chart existed.
func (cm *ChartManager) ReplaceChart(id ChartID, cfg ChartConfig) (chart *Chart, replaced bool, err error) {
	if id == "" {
		return nil, false, fmt.Errorf("chart id is required")
	}
	sched, err := BuildChartFromConfig(cfg)
	if err != nil {
		return nil, false, err
	}

	cm.mu.Lock()
	chart, err = cm.newChartLocked(id, cfg, sched)
	if err != nil {
		cm.mu.Unlock()
		return nil, false, err
	}
	old, replaced := cm.charts[id]
	cm.charts[id] = chart
	cm.mu.Unlock()

	if replaced {
		cm.teardown(old)
		cm.logger.Infof("chart %s replaced: types=%v capacity=%d", id, sched.Types, sched.Capacity())
	} else {
		cm.logger.Infof("chart %s created: types=%v capacity=%d", id, sched.Types, sched.Capacity())
	}
	return chart, replaced, nil
}

func (cm *ChartManager) newChartLocked(id ChartID, cfg ChartConfig, sched Config) (*Chart, error) {
	s, err := NewScheduler(sched, cm.clock)
	if err != nil {
		return nil, err
	}
	s.SetLogger(cm.logger)

	chart := &Chart{
		ID:        id,
		Name:      cfg.Name,
		Scheduler: s,
		Notifiers: slices.Clone(cfg.Notifiers),
	}
	if cm.notificationManager != nil && len(chart.Notifiers) > 0 {
		cm.forward(chart, cm.notificationManager)
	}
	return chart, nil
}

// teardown stops a chart that is no longer registered.
func (cm *ChartManager) teardown(chart *Chart) {
	if chart.stopForwarding != nil {
		chart.stopForwarding()
		<-chart.forwardDone
	}
	chart.Scheduler.Close()
}

// forward pumps the chart's events into nm until the chart is deleted.
func (cm *ChartManager) forward(chart *Chart, nm *NotificationManager) {
	events, stop := chart.Scheduler.Subscribe(eventBuffer)
	chart.stopForwarding = stop
	chart.forwardDone = make(chan struct{})
	ids := slices.Clone(chart.Notifiers)
	go func() {
		defer close(chart.forwardDone)
		for ev := range events {
			nm.Enqueue(NewNotificationEvent(chart.ID, ev), ids)
		}
	}()
}

// GetChart retrieves a chart by ID
// Returns the chart and a boolean indicating if it was found
func (cm *ChartManager) GetChart(id ChartID) (*Chart, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	chart, exists := cm.charts[id]
	return chart, exists
}

// DeleteChart closes the chart's scheduler and removes it
// Returns an error if the chart doesn't exist
func (cm *ChartManager) DeleteChart(id ChartID) error {
	cm.mu.Lock()
	chart, exists := cm.charts[id]
	delete(cm.charts, id)
	cm.mu.Unlock()

	if !exists {
		return fmt.Errorf("chart with id %s does not exist", id)
	}

	cm.teardown(chart)
	cm.logger.Infof("chart %s deleted", id)
	return nil
}

// ListCharts returns all chart IDs in sorted order
func (cm *ChartManager) ListCharts() []ChartID {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	ids := make([]ChartID, 0, len(cm.charts))
	for id := range cm.charts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ResetChart replaces a chart's molecules with counts, discarding in-flight
// sequences.
func (cm *ChartManager) ResetChart(id ChartID, counts map[MoleculeType]int) error {
	chart, exists := cm.GetChart(id)
	if !exists {
		return fmt.Errorf("chart with id %s does not exist", id)
	}
	return chart.Scheduler.Reset(counts)
}

// Close deletes every chart.
func (cm *ChartManager) Close() {
	for _, id := range cm.ListCharts() {
		_ = cm.DeleteChart(id)
	}
}
