package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/daniacca/molgrid/internal/reaction"
)

// epoch is the logical start of every run, so output is reproducible.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// maxDrain bounds how long a run without until_ms waits for sequences.
const maxDrain = 10 * time.Minute

type options struct {
	tick   time.Duration
	events bool
	logger reaction.Logger
}

// stderrLogger prints scheduler logs through the standard log package.
type stderrLogger struct{ l *log.Logger }

func (s stderrLogger) Debugf(format string, v ...any) { s.l.Printf("[DEBUG] "+format, v...) }
func (s stderrLogger) Infof(format string, v ...any)  { s.l.Printf("[INFO] "+format, v...) }
func (s stderrLogger) Warnf(format string, v ...any)  { s.l.Printf("[WARN] "+format, v...) }
func (s stderrLogger) Errorf(format string, v ...any) { s.l.Printf("[ERROR] "+format, v...) }

func main() {
	var (
		scenarioFile = flag.String("scenario-file", "", "path to scenario JSON file (required)")
		tick         = flag.Duration("tick", 100*time.Millisecond, "logical time step used while waiting for sequences")
		events       = flag.Bool("events", false, "print scheduler events")
		verbose      = flag.Bool("verbose", false, "log scheduler decisions to stderr")
	)
	flag.Parse()

	if *scenarioFile == "" {
		fmt.Fprintf(os.Stderr, "error: --scenario-file is required\n")
		flag.Usage()
		os.Exit(1)
	}
	if *tick <= 0 {
		fmt.Fprintf(os.Stderr, "error: --tick must be > 0\n")
		os.Exit(1)
	}

	sc, err := loadScenarioFromFile(*scenarioFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading scenario: %v\n", err)
		os.Exit(1)
	}

	opts := options{tick: *tick, events: *events, logger: reaction.NewNoOpLogger()}
	if *verbose {
		opts.logger = stderrLogger{l: log.New(os.Stderr, "", 0)}
	}

	if _, err := run(os.Stdout, sc, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// summary is what a finished run reports.
type summary struct {
	Started   int
	Rejected  int
	Elapsed   time.Duration
	Live      map[reaction.MoleculeType]int
	InFlight  int
	Dropped   uint64
	Molecules int
}

// run plays the scenario on a manual clock and writes a line per step
// followed by a summary.
func run(w io.Writer, sc Scenario, opts options) (summary, error) {
	cfg, err := reaction.BuildChartFromConfig(sc.Chart)
	if err != nil {
		return summary{}, err
	}
	if opts.tick <= 0 {
		opts.tick = 100 * time.Millisecond
	}

	clock := reaction.NewManualClock(epoch)
	s, err := reaction.NewScheduler(cfg, clock)
	if err != nil {
		return summary{}, err
	}
	defer s.Close()
	if opts.logger != nil {
		s.SetLogger(opts.logger)
	}

	var evs <-chan reaction.Event
	if opts.events {
		var unsubscribe func()
		evs, unsubscribe = s.Subscribe(4096)
		defer unsubscribe()
	}
	printEvents := func() {
		for {
			select {
			case ev, ok := <-evs:
				if !ok {
					return
				}
				fmt.Fprintf(w, "  %8s  event %-18s seq=%s types=%v\n", elapsed(ev.At), ev.Kind, shortID(ev.SequenceID), ev.Types)
			default:
				return
			}
		}
	}

	steps := slices.Clone(sc.Steps)
	slices.SortStableFunc(steps, func(a, b Step) int {
		switch {
		case a.AtMs < b.AtMs:
			return -1
		case a.AtMs > b.AtMs:
			return 1
		}
		return 0
	})

	fmt.Fprintf(w, "Simulation of chart %s (capacity %d, types %v)\n", sc.Chart.Name, cfg.Capacity(), cfg.Types)
	out := summary{}
	for _, st := range steps {
		clock.AdvanceTo(epoch.Add(time.Duration(st.AtMs) * time.Millisecond))
		printEvents()

		started, err := apply(s, st)
		if err != nil {
			return out, fmt.Errorf("step %s at %dms: %w", st, st.AtMs, err)
		}
		if started {
			out.Started++
		} else {
			out.Rejected++
		}
		printEvents()
		fmt.Fprintf(w, "  %8s  %-36s started=%-5v %s in-flight=%d\n",
			elapsed(clock.Now()), st, started, formatCounts(cfg.Types, s.Counts()), s.InFlight())
	}

	if sc.UntilMs > 0 {
		clock.AdvanceTo(epoch.Add(time.Duration(sc.UntilMs) * time.Millisecond))
	} else {
		for waited := time.Duration(0); s.InFlight() > 0 && waited < maxDrain; waited += opts.tick {
			clock.Advance(opts.tick)
		}
	}
	printEvents()

	out.Elapsed = clock.Now().Sub(epoch)
	out.Live = s.LiveCounts()
	out.InFlight = s.InFlight()
	out.Dropped = s.DroppedEvents()
	out.Molecules = len(s.Molecules())

	fmt.Fprintf(w, "Simulation finished (chart=%s, elapsed=%s)\n", sc.Chart.Name, out.Elapsed)
	fmt.Fprintf(w, "Sequences: %d started, %d rejected, %d still in flight\n", out.Started, out.Rejected, out.InFlight)
	fmt.Fprintln(w, "Molecule counts:")
	for _, t := range cfg.Types {
		fmt.Fprintf(w, "  %s: %d\n", t, out.Live[t])
	}
	if out.Dropped > 0 {
		fmt.Fprintf(w, "Dropped events: %d\n", out.Dropped)
	}
	return out, nil
}

func elapsed(t time.Time) string {
	return t.Sub(epoch).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatCounts(order []reaction.MoleculeType, c map[reaction.MoleculeType]int) string {
	parts := make([]string, 0, len(order))
	for _, t := range order {
		parts = append(parts, fmt.Sprintf("%s=%d", t, c[t]))
	}
	return strings.Join(parts, " ")
}
