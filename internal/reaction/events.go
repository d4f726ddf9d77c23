package reaction

import "time"

// EventKind names a point in a sequence's life that observers may sync to.
type EventKind string

const (
	EventSequenceStarted   EventKind = "sequence_started"
	EventMoveToTop         EventKind = "move_to_top"
	EventFadeOut           EventKind = "fade_out"
	EventSlideDown         EventKind = "slide_down"
	EventAddToTop          EventKind = "add_to_top"
	EventSequenceCompleted EventKind = "sequence_completed"
)

// Event is pushed to subscribers when an action category starts. It is
// informational only; the scheduler's state never depends on delivery.
type Event struct {
	Kind       EventKind            `json:"kind"`
	SequenceID string               `json:"sequence_id"`
	Types      []MoleculeType       `json:"types,omitempty"`
	At         time.Time            `json:"at"`
	Counts     map[MoleculeType]int `json:"counts"`
}

// Subscribe registers a buffered event channel. The scheduler never blocks on
// a subscriber: events that do not fit in the buffer are dropped. Call the
// returned function to unregister and close the channel.
func (s *Scheduler) Subscribe(buffer int) (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, max(buffer, 0))
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubscriber
	s.nextSubscriber++
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}
}

// DroppedEvents returns how many events were dropped because a subscriber's
// buffer was full.
func (s *Scheduler) DroppedEvents() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// emit must be called with s.mu held.
func (s *Scheduler) emit(kind EventKind, seq *sequence, types []MoleculeType, at time.Time) {
	if len(s.subscribers) == 0 {
		return
	}
	ev := Event{
		Kind:       kind,
		SequenceID: seq.id,
		Types:      append([]MoleculeType(nil), types...),
		At:         at,
		Counts:     s.liveCountsLocked(),
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.dropped++
			s.logger.Debugf("event subscriber full, dropping %s for sequence %s", kind, seq.id)
		}
	}
}
