package reaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// NotificationEvent is a scheduler event tagged with the chart it came from.
type NotificationEvent struct {
	ChartID   ChartID `json:"chart_id"`
	Timestamp int64   `json:"timestamp"`
	Event
}

// JSON returns the notification event as JSON bytes
func (ne NotificationEvent) JSON() ([]byte, error) {
	return json.Marshal(ne)
}

// Notifier is the interface that all notification channels must implement
type Notifier interface {
	// ID returns a unique identifier for this notifier
	ID() string

	// Type returns the type of notifier (e.g., "webhook", "websocket")
	Type() string

	// Notify delivers one event. The context carries the delivery deadline.
	Notify(ctx context.Context, event NotificationEvent) error

	// Close closes the notifier and releases any resources
	Close() error
}

type notificationJob struct {
	Event       NotificationEvent
	NotifierIDs []string
}

const (
	defaultQueueSize    = 1024
	defaultMaxRetries   = 3
	defaultRetryBackoff = 100 * time.Millisecond
	dispatchTimeout     = 30 * time.Second
)

// NotificationManager routes chart events to registered notifiers through an
// asynchronous worker queue with retry and exponential backoff.
type NotificationManager struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	jobs      chan notificationJob
	closed    bool
	wg        sync.WaitGroup
	logger    Logger

	maxRetries int
	backoff    time.Duration
}

// NewNotificationManager creates a new notification manager with one worker
func NewNotificationManager() *NotificationManager {
	return NewNotificationManagerWithLogger(NewNoOpLogger(), 1)
}

// NewNotificationManagerWithLogger creates a notification manager with the
// given logger and number of workers.
func NewNotificationManagerWithLogger(logger Logger, workers int) *NotificationManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	mgr := &NotificationManager{
		notifiers:  make(map[string]Notifier),
		jobs:       make(chan notificationJob, defaultQueueSize),
		logger:     logger,
		maxRetries: defaultMaxRetries,
		backoff:    defaultRetryBackoff,
	}
	mgr.startWorkers(max(workers, 1))
	return mgr
}

// SetRetryPolicy changes how often and how fast failed deliveries retry.
func (nm *NotificationManager) SetRetryPolicy(maxRetries int, backoff time.Duration) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.maxRetries = max(maxRetries, 0)
	nm.backoff = max(backoff, 0)
}

// RegisterNotifier registers a notifier with the manager
func (nm *NotificationManager) RegisterNotifier(notifier Notifier) error {
	if notifier == nil {
		return errors.New("notifier cannot be nil")
	}
	id := notifier.ID()
	if id == "" {
		return errors.New("notifier ID cannot be empty")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if nm.closed {
		return errors.New("notification manager is closed")
	}
	if _, exists := nm.notifiers[id]; exists {
		return fmt.Errorf("notifier with ID %s already exists", id)
	}
	nm.notifiers[id] = notifier
	return nil
}

// UnregisterNotifier closes and removes a notifier
func (nm *NotificationManager) UnregisterNotifier(id string) error {
	nm.mu.Lock()
	notifier, exists := nm.notifiers[id]
	delete(nm.notifiers, id)
	nm.mu.Unlock()

	if !exists {
		return fmt.Errorf("notifier with ID %s not found", id)
	}
	if err := notifier.Close(); err != nil {
		return fmt.Errorf("error closing notifier %s: %w", id, err)
	}
	return nil
}

// GetNotifier retrieves a notifier by ID
func (nm *NotificationManager) GetNotifier(id string) (Notifier, bool) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	notifier, exists := nm.notifiers[id]
	return notifier, exists
}

// ListNotifiers returns the registered notifier IDs in sorted order
func (nm *NotificationManager) ListNotifiers() []string {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	ids := make([]string, 0, len(nm.notifiers))
	for id := range nm.notifiers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Enqueue hands an event to the worker queue. It never blocks: when the
// queue is full the event is dropped.
func (nm *NotificationManager) Enqueue(event NotificationEvent, notifierIDs []string) {
	if len(notifierIDs) == 0 {
		return
	}

	nm.mu.RLock()
	defer nm.mu.RUnlock()
	if nm.closed {
		return
	}

	select {
	case nm.jobs <- notificationJob{Event: event, NotifierIDs: notifierIDs}:
	default:
		nm.logger.Warnf("notification queue full, dropping %s event for chart %s", event.Kind, event.ChartID)
	}
}

func (nm *NotificationManager) startWorkers(n int) {
	for range n {
		nm.wg.Add(1)
		go nm.worker()
	}
}

func (nm *NotificationManager) worker() {
	defer nm.wg.Done()
	for job := range nm.jobs {
		nm.dispatchJob(job)
	}
}

func (nm *NotificationManager) dispatchJob(job notificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	for _, id := range job.NotifierIDs {
		nm.notifyWithRetry(ctx, id, job.Event)
	}
}

func (nm *NotificationManager) notifyWithRetry(ctx context.Context, notifierID string, event NotificationEvent) {
	nm.mu.RLock()
	notifier, ok := nm.notifiers[notifierID]
	maxRetries, backoff := nm.maxRetries, nm.backoff
	nm.mu.RUnlock()

	if !ok {
		nm.logger.Warnf("notification failed: notifier=%s error=notifier not found", notifierID)
		return
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := notifier.Notify(ctx, event)
		if err == nil {
			return
		}
		nm.logger.Warnf("notification failed: notifier=%s attempt=%d error=%v", notifierID, attempt+1, err)

		if attempt == maxRetries {
			nm.logger.Errorf("notification failed after %d attempts: notifier=%s", maxRetries+1, notifierID)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// Notify delivers an event to the given notifiers synchronously, without
// retries.
func (nm *NotificationManager) Notify(ctx context.Context, event NotificationEvent, notifierIDs []string) error {
	var errs []error
	for _, id := range notifierIDs {
		notifier, exists := nm.GetNotifier(id)
		if !exists {
			errs = append(errs, fmt.Errorf("notifier %s not found", id))
			continue
		}
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notifier %s failed: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Close drains the queue, stops the workers and closes every notifier
func (nm *NotificationManager) Close() error {
	nm.mu.Lock()
	if nm.closed {
		nm.mu.Unlock()
		return nil
	}
	nm.closed = true
	close(nm.jobs)
	nm.mu.Unlock()

	nm.wg.Wait()

	nm.mu.Lock()
	var errs []error
	for id, notifier := range nm.notifiers {
		if err := notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing notifier %s: %w", id, err))
		}
	}
	nm.notifiers = make(map[string]Notifier)
	nm.mu.Unlock()

	return errors.Join(errs...)
}

// NewNotificationEvent tags a scheduler event with its chart.
func NewNotificationEvent(chartID ChartID, ev Event) NotificationEvent {
	return NotificationEvent{
		ChartID:   chartID,
		Timestamp: ev.At.Unix(),
		Event:     ev,
	}
}
