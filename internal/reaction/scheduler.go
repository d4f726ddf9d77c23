package reaction

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/daniacca/molgrid/internal/grid"
)

// Scheduler owns the molecules of a chart and runs reaction sequences
// against them. Each admitted sequence executes its actions strictly in
// order; the duration an action reports is the delay before the next one.
// Independent sequences overlap freely and are serialised per action.
type Scheduler struct {
	mu      sync.Mutex
	cfg     Config
	columns map[MoleculeType]int
	clock   Clock
	logger  Logger

	molecules []*Molecule
	sequences []*sequence
	// generation invalidates continuations scheduled before a reset.
	generation uint64
	closed     bool

	subscribers    map[int]chan Event
	nextSubscriber int
	dropped        uint64
}

type sequence struct {
	id         string
	added      []MoleculeType
	consumed   []MoleculeType
	actions    []Action
	generation uint64
	timer      Timer

	// pending effects not applied yet; they feed the projected counts.
	pendingAdds    map[MoleculeType]int
	pendingRemoves map[MoleculeType]int

	dropping map[MoleculeType]*Molecule
	claimed  map[MoleculeType]*Molecule
	gaps     map[MoleculeType]int
}

// SequenceView describes an in-flight sequence.
type SequenceView struct {
	ID       string         `json:"id"`
	Added    []MoleculeType `json:"added"`
	Consumed []MoleculeType `json:"consumed"`
	Pending  []string       `json:"pending"`
}

// NewScheduler creates a scheduler with cfg's initial counts. A nil clock
// uses the wall clock.
func NewScheduler(cfg Config, clock Clock) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = NewRealClock()
	}
	s := &Scheduler{
		cfg:         cfg.WithCounts(cfg.Counts),
		columns:     make(map[MoleculeType]int, len(cfg.Types)),
		clock:       clock,
		logger:      NewNoOpLogger(),
		subscribers: make(map[int]chan Event),
	}
	for i, t := range cfg.Types {
		s.columns[t] = i
	}
	s.populate(s.cfg.Counts)
	return s, nil
}

// SetLogger replaces the scheduler's logger. nil restores the no-op logger.
func (s *Scheduler) SetLogger(l Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil {
		l = NewNoOpLogger()
	}
	s.logger = l
}

// Config returns the scheduler's parameters with the counts it was last
// reset to.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.WithCounts(s.cfg.Counts)
}

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// StartReaction drops one adding molecule into its column, removes the
// bottom reactsWith molecule and adds one producing molecule on top of its
// column. It is rejected when adding or producing has no projected room or
// reactsWith has nothing left to consume.
func (s *Scheduler) StartReaction(adding, reactsWith, producing MoleculeType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.newSequence(reactionActions(adding, reactsWith, producing))
	seq.added = []MoleculeType{adding, producing}
	seq.consumed = []MoleculeType{reactsWith}
	return s.admit(seq)
}

// StartReactionFromExisting removes the bottom consuming molecule and adds
// one molecule of each producing type.
func (s *Scheduler) StartReactionFromExisting(consuming MoleculeType, producing ...MoleculeType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.newSequence(consumeActions(consuming, producing))
	seq.added = slices.Clone(producing)
	seq.consumed = []MoleculeType{consuming}
	return s.admit(seq)
}

// Consume removes count molecules of t, one independent sequence each. It
// stops at the first rejection; sequences admitted before it still run.
// The result is true only when all count sequences were admitted, so a
// count of zero reports true without scheduling anything.
func (s *Scheduler) Consume(t MoleculeType, count int) bool {
	if !grid.Precondition(count >= 0, "consume count %d is negative", count) {
		s.warnClamp("consume", count)
		return false
	}
	if count == 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for range count {
		seq := s.newSequence(consumeActions(t, nil))
		seq.consumed = []MoleculeType{t}
		if !s.admit(seq) {
			return false
		}
	}
	return true
}

// AddMolecules drops count molecules of t, spreading their start evenly
// across duration. Every sequence is tried; the result is true only when
// all were admitted. A count of zero reports true.
func (s *Scheduler) AddMolecules(t MoleculeType, count int, duration time.Duration) bool {
	if !grid.Precondition(count >= 0, "add count %d is negative", count) {
		s.warnClamp("add", count)
		return false
	}
	if count == 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := true
	for i := range count {
		var wait time.Duration
		if count > 1 {
			wait = time.Duration(int64(i) * int64(max(duration, 0)) / int64(count-1))
		}
		seq := s.newSequence(addActions(t, wait))
		seq.added = []MoleculeType{t}
		if !s.admit(seq) {
			all = false
		}
	}
	return all
}

// MoleculeCounts is the projected count of t: live molecules plus adds
// and minus removals that in-flight sequences have yet to apply.
func (s *Scheduler) MoleculeCounts(t MoleculeType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectedLocked(t)
}

// LiveCount is the number of molecules of t that currently exist.
func (s *Scheduler) LiveCount(t MoleculeType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(t)
}

// Counts returns the projected count of every type.
func (s *Scheduler) Counts() map[MoleculeType]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[MoleculeType]int, len(s.cfg.Types))
	for _, t := range s.cfg.Types {
		out[t] = s.projectedLocked(t)
	}
	return out
}

// LiveCounts returns the live count of every type.
func (s *Scheduler) LiveCounts() map[MoleculeType]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveCountsLocked()
}

// Molecules returns a presentation snapshot at the clock's current time,
// ordered by column then row.
func (s *Scheduler) Molecules() []MoleculeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	out := make([]MoleculeView, 0, len(s.molecules))
	for _, m := range s.molecules {
		out = append(out, m.view(s.columns[m.Type], now, s.cfg.DropSpeed))
	}
	slices.SortStableFunc(out, func(a, b MoleculeView) int {
		if a.Column != b.Column {
			return a.Column - b.Column
		}
		return a.RowIndex - b.RowIndex
	})
	return out
}

// Sequences lists the in-flight sequences in admission order.
func (s *Scheduler) Sequences() []SequenceView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SequenceView, 0, len(s.sequences))
	for _, seq := range s.sequences {
		pending := make([]string, len(seq.actions))
		for i, a := range seq.actions {
			pending[i] = a.String()
		}
		out = append(out, SequenceView{
			ID:       seq.id,
			Added:    slices.Clone(seq.added),
			Consumed: slices.Clone(seq.consumed),
			Pending:  pending,
		})
	}
	return out
}

// InFlight returns the number of sequences that have not drained yet.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sequences)
}

// Reset replaces the chart's state with freshly stacked columns holding
// counts. In-flight sequences are discarded and their pending timers become
// no-ops.
func (s *Scheduler) Reset(counts map[MoleculeType]int) error {
	next := s.Config().WithCounts(counts)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid reset counts: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardSequences()
	s.cfg = next
	s.populate(next.Counts)
	s.logger.Infof("scheduler reset: counts=%v", next.Counts)
	return nil
}

// Close discards in-flight sequences and closes every subscriber channel.
// Start calls after Close are rejected.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.discardSequences()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

func (s *Scheduler) discardSequences() {
	s.generation++
	for _, seq := range s.sequences {
		if seq.timer != nil {
			seq.timer.Stop()
		}
	}
	s.sequences = nil
}

func (s *Scheduler) populate(counts map[MoleculeType]int) {
	s.molecules = s.molecules[:0]
	for _, t := range s.cfg.Types {
		for row := range counts[t] {
			s.molecules = append(s.molecules, newMolecule(t, row))
		}
	}
}

func (s *Scheduler) newSequence(actions []Action) *sequence {
	seq := &sequence{
		id:             NewRandomID(),
		actions:        actions,
		pendingAdds:    make(map[MoleculeType]int),
		pendingRemoves: make(map[MoleculeType]int),
		dropping:       make(map[MoleculeType]*Molecule),
		claimed:        make(map[MoleculeType]*Molecule),
		gaps:           make(map[MoleculeType]int),
	}
	for _, a := range actions {
		for _, t := range a.Types {
			switch a.Kind {
			case ActionPrepareDrop, ActionAddToTop:
				seq.pendingAdds[t]++
			case ActionDeleteBottom:
				seq.pendingRemoves[t]++
			}
		}
	}
	return seq
}

// admit checks seq against the committed and available counts and, when it
// fits, runs its first actions immediately.
func (s *Scheduler) admit(seq *sequence) bool {
	if s.closed {
		return false
	}
	capacity := s.cfg.Capacity()
	for _, t := range sortedTypes(seq.pendingAdds, seq.pendingRemoves) {
		if _, ok := s.columns[t]; !ok {
			s.logger.Warnf("rejecting sequence: unknown molecule type '%s'", t)
			return false
		}
		if s.committedLocked(t)+seq.pendingAdds[t] > capacity {
			s.logger.Debugf("rejecting sequence: no room for %d more '%s' (committed %d, capacity %d)",
				seq.pendingAdds[t], t, s.committedLocked(t), capacity)
			return false
		}
		if s.availableLocked(t) < seq.pendingRemoves[t] {
			s.logger.Debugf("rejecting sequence: %d '%s' to consume, %d available",
				seq.pendingRemoves[t], t, s.availableLocked(t))
			return false
		}
	}

	seq.generation = s.generation
	s.sequences = append(s.sequences, seq)
	s.emit(EventSequenceStarted, seq, append(slices.Clone(seq.added), seq.consumed...), s.clock.Now())
	s.advance(seq)
	return true
}

// advance runs seq's actions until one reports a non-zero duration, then
// schedules the rest. Must be called with s.mu held.
func (s *Scheduler) advance(seq *sequence) {
	for len(seq.actions) > 0 {
		a := seq.actions[0]
		seq.actions = seq.actions[1:]
		d := s.execute(seq, a, s.clock.Now())
		if len(seq.actions) == 0 {
			break
		}
		if d > 0 {
			s.schedule(seq, d)
			return
		}
	}
	s.finish(seq)
}

func (s *Scheduler) schedule(seq *sequence, d time.Duration) {
	gen := seq.generation
	seq.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.generation {
			return
		}
		seq.timer = nil
		s.advance(seq)
	})
}

func (s *Scheduler) finish(seq *sequence) {
	if i := slices.Index(s.sequences, seq); i >= 0 {
		s.sequences = slices.Delete(s.sequences, i, i+1)
	}
	s.emit(EventSequenceCompleted, seq, nil, s.clock.Now())
	s.logger.Debugf("sequence %s completed", seq.id)
}

func (s *Scheduler) execute(seq *sequence, a Action, now time.Time) time.Duration {
	switch a.Kind {
	case ActionPrepareDrop:
		return s.prepareDrop(seq, a.Types, now)
	case ActionMoveToTop:
		s.emit(EventMoveToTop, seq, a.Types, now)
		return s.moveToTop(seq, a.Types, now)
	case ActionFadeOutBottom:
		s.emit(EventFadeOut, seq, a.Types, now)
		return s.fadeOutBottom(seq, a.Types, now)
	case ActionDeleteBottom:
		return s.deleteBottom(seq, a.Types)
	case ActionSlideDown:
		s.emit(EventSlideDown, seq, a.Types, now)
		return s.slideDown(seq, a.Types, now)
	case ActionAddToTop:
		s.emit(EventAddToTop, seq, a.Types, now)
		return s.addToTop(seq, a.Types, now)
	case ActionWait:
		return a.Delay
	}
	return 0
}

func (s *Scheduler) prepareDrop(seq *sequence, types []MoleculeType, now time.Time) time.Duration {
	for _, t := range types {
		m := newMolecule(t, s.cfg.MaxRowIndex)
		m.placed = false
		m.fadeIn(now, s.cfg.FadeDuration)
		s.molecules = append(s.molecules, m)
		seq.dropping[t] = m
		seq.pendingAdds[t]--
	}
	return s.cfg.FadeDuration
}

func (s *Scheduler) moveToTop(seq *sequence, types []MoleculeType, now time.Time) time.Duration {
	distance := 0.0
	for _, t := range types {
		m := seq.dropping[t]
		delete(seq.dropping, t)
		if m == nil || !s.isLive(m) {
			continue
		}
		from := float64(m.RowIndex)
		m.RowIndex = s.topRow(t) + 1
		m.placed = true
		m.startDrop(from, now)
		distance = max(distance, from-float64(m.RowIndex))
	}
	return s.rowsDuration(distance)
}

func (s *Scheduler) fadeOutBottom(seq *sequence, types []MoleculeType, now time.Time) time.Duration {
	for _, t := range types {
		m := s.lowestUnclaimed(t)
		if m == nil {
			continue
		}
		m.claimed = true
		m.fadeOut(now, s.cfg.FadeDuration)
		seq.claimed[t] = m
	}
	return s.cfg.FadeDuration
}

func (s *Scheduler) deleteBottom(seq *sequence, types []MoleculeType) time.Duration {
	for _, t := range types {
		seq.pendingRemoves[t]--
		m := seq.claimed[t]
		delete(seq.claimed, t)
		if m == nil || !s.isLive(m) {
			m = s.lowestUnclaimed(t)
		}
		if m == nil {
			s.logger.Warnf("sequence %s: no '%s' molecule left to delete", seq.id, t)
			continue
		}
		s.remove(m)
		seq.gaps[t] = m.RowIndex
	}
	return 0
}

// slideDown closes the gap a deletion left in each column. A molecule still
// falling from above its nominal row + 1 keeps its current drop; any other
// molecule restarts its drop from its estimated position.
func (s *Scheduler) slideDown(seq *sequence, types []MoleculeType, now time.Time) time.Duration {
	for _, t := range types {
		gap, ok := seq.gaps[t]
		if !ok {
			continue
		}
		delete(seq.gaps, t)
		for _, m := range s.molecules {
			if m.Type != t || !m.placed || m.RowIndex <= gap {
				continue
			}
			est := m.estimatedRow(now, s.cfg.DropSpeed)
			nominal := m.RowIndex
			m.RowIndex--
			if m.drop.active && est > float64(nominal+1) {
				continue
			}
			m.startDrop(est, now)
		}
	}
	return s.rowsDuration(1)
}

func (s *Scheduler) addToTop(seq *sequence, types []MoleculeType, now time.Time) time.Duration {
	for _, t := range types {
		m := newMolecule(t, s.topRow(t)+1)
		m.fadeIn(now, s.cfg.FadeDuration)
		s.molecules = append(s.molecules, m)
		seq.pendingAdds[t]--
	}
	return s.cfg.FadeDuration
}

func (s *Scheduler) rowsDuration(rows float64) time.Duration {
	if rows <= 0 {
		return 0
	}
	return time.Duration(rows / s.cfg.DropSpeed * float64(time.Second))
}

// topRow is the highest occupied row of t's column, or -1 when empty.
// Molecules still being prepared do not occupy a row.
func (s *Scheduler) topRow(t MoleculeType) int {
	top := -1
	for _, m := range s.molecules {
		if m.Type == t && m.placed {
			top = max(top, m.RowIndex)
		}
	}
	return top
}

func (s *Scheduler) lowestUnclaimed(t MoleculeType) *Molecule {
	var lowest *Molecule
	for _, m := range s.molecules {
		if m.Type != t || !m.placed || m.claimed {
			continue
		}
		if lowest == nil || m.RowIndex < lowest.RowIndex {
			lowest = m
		}
	}
	return lowest
}

func (s *Scheduler) isLive(m *Molecule) bool {
	return slices.Contains(s.molecules, m)
}

func (s *Scheduler) remove(m *Molecule) {
	s.molecules = slices.DeleteFunc(s.molecules, func(x *Molecule) bool { return x == m })
}

func (s *Scheduler) liveLocked(t MoleculeType) int {
	n := 0
	for _, m := range s.molecules {
		if m.Type == t {
			n++
		}
	}
	return n
}

func (s *Scheduler) liveCountsLocked() map[MoleculeType]int {
	out := make(map[MoleculeType]int, len(s.cfg.Types))
	for _, t := range s.cfg.Types {
		out[t] = 0
	}
	for _, m := range s.molecules {
		out[m.Type]++
	}
	return out
}

func (s *Scheduler) projectedLocked(t MoleculeType) int {
	n := s.liveLocked(t)
	for _, seq := range s.sequences {
		n += seq.pendingAdds[t] - seq.pendingRemoves[t]
	}
	return n
}

// committedLocked is the most a column can hold before any in-flight
// sequence finishes: live molecules plus every reserved add. A reserved
// removal frees no room until its molecule is actually deleted, since adds
// can land first.
func (s *Scheduler) committedLocked(t MoleculeType) int {
	n := s.liveLocked(t)
	for _, seq := range s.sequences {
		n += seq.pendingAdds[t]
	}
	return n
}

// availableLocked is what can still be consumed: live molecules minus
// removals already reserved. Pending adds are not counted since they may
// land after the removal runs.
func (s *Scheduler) availableLocked(t MoleculeType) int {
	n := s.liveLocked(t)
	for _, seq := range s.sequences {
		n -= seq.pendingRemoves[t]
	}
	return n
}

func (s *Scheduler) warnClamp(op string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Warnf("%s called with negative count %d, ignoring", op, count)
}

func sortedTypes(sets ...map[MoleculeType]int) []MoleculeType {
	seen := make(map[MoleculeType]int)
	for _, set := range sets {
		maps.Copy(seen, set)
	}
	return slices.Sorted(maps.Keys(seen))
}
