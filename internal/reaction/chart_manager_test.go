package reaction

import (
	"slices"
	"sync"
	"testing"
	"time"
)

func TestChartManager_CreateChart(t *testing.T) {
	cm := NewChartManager(NewManualClock(epoch))
	defer cm.Close()

	chart, err := cm.CreateChart("chart-1", validChartConfig())
	if err != nil {
		t.Fatalf("Failed to create chart: %v", err)
	}
	if chart.Scheduler.LiveCount("A") != 5 {
		t.Errorf("Expected initial A count 5, got %d", chart.Scheduler.LiveCount("A"))
	}
	if got, ok := cm.GetChart("chart-1"); !ok || got != chart {
		t.Error("Expected GetChart to return the created chart")
	}
	if _, err := cm.CreateChart("chart-1", validChartConfig()); err == nil {
		t.Error("Expected error for duplicate chart ID")
	}
	if _, err := cm.CreateChart("", validChartConfig()); err == nil {
		t.Error("Expected error for empty chart ID")
	}
	if _, err := cm.CreateChart("bad", ChartConfig{}); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestChartManager_ReplaceChart(t *testing.T) {
	cm := NewChartManager(NewManualClock(epoch))
	defer cm.Close()

	first, replaced, err := cm.ReplaceChart("chart-1", validChartConfig())
	if err != nil {
		t.Fatalf("Failed to create chart: %v", err)
	}
	if replaced {
		t.Error("Expected first ReplaceChart to report a new chart")
	}

	cfg := validChartConfig()
	cfg.Counts = map[string]int{"C": 3}
	second, replaced, err := cm.ReplaceChart("chart-1", cfg)
	if err != nil {
		t.Fatalf("Failed to replace chart: %v", err)
	}
	if !replaced {
		t.Error("Expected ReplaceChart to report the replacement")
	}
	if got, _ := cm.GetChart("chart-1"); got != second {
		t.Error("Expected GetChart to return the replacement")
	}
	if second.Scheduler.LiveCount("C") != 3 || second.Scheduler.LiveCount("A") != 0 {
		t.Errorf("Expected replacement counts, got %v", second.Scheduler.LiveCounts())
	}
	if first.Scheduler.StartReaction("A", "B", "C") {
		t.Error("Expected replaced chart's scheduler to be closed")
	}

	if _, _, err := cm.ReplaceChart("chart-1", ChartConfig{}); err == nil {
		t.Error("Expected error for invalid config")
	}
	if got, _ := cm.GetChart("chart-1"); got != second {
		t.Error("Expected a rejected replacement to keep the current chart")
	}
}

func TestChartManager_ConcurrentReplace(t *testing.T) {
	cm := NewChartManager(NewManualClock(epoch))
	defer cm.Close()

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	charts := make([]*Chart, 0, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chart, replaced, err := cm.ReplaceChart("shared", validChartConfig())
			if err != nil {
				t.Errorf("Failed to replace chart: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if !replaced {
				created++
			}
			charts = append(charts, chart)
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("Expected exactly one writer to create the chart, got %d", created)
	}
	current, ok := cm.GetChart("shared")
	if !ok {
		t.Fatal("Expected the chart to exist")
	}
	open := 0
	for _, c := range charts {
		if c.Scheduler.Consume("B", 1) {
			open++
			if c != current {
				t.Error("Expected only the registered chart to accept work")
			}
		}
	}
	if open != 1 {
		t.Errorf("Expected exactly one live scheduler, got %d", open)
	}
}

func TestChartManager_DeleteAndList(t *testing.T) {
	cm := NewChartManager(NewManualClock(epoch))
	for _, id := range []ChartID{"b", "a", "c"} {
		if _, err := cm.CreateChart(id, validChartConfig()); err != nil {
			t.Fatalf("Failed to create chart %s: %v", id, err)
		}
	}
	if ids := cm.ListCharts(); !slices.Equal(ids, []ChartID{"a", "b", "c"}) {
		t.Errorf("Expected sorted ids, got %v", ids)
	}

	chart, _ := cm.GetChart("b")
	if err := cm.DeleteChart("b"); err != nil {
		t.Errorf("Failed to delete chart: %v", err)
	}
	if chart.Scheduler.StartReaction("A", "B", "C") {
		t.Error("Expected deleted chart's scheduler to reject work")
	}
	if err := cm.DeleteChart("b"); err == nil {
		t.Error("Expected error deleting a missing chart")
	}
	cm.Close()
	if len(cm.ListCharts()) != 0 {
		t.Errorf("Expected Close to delete all charts, got %v", cm.ListCharts())
	}
}

func TestChartManager_ResetChart(t *testing.T) {
	cm := NewChartManager(NewManualClock(epoch))
	defer cm.Close()
	chart, _ := cm.CreateChart("chart-1", validChartConfig())

	if err := cm.ResetChart("chart-1", map[MoleculeType]int{"C": 4}); err != nil {
		t.Fatalf("Failed to reset: %v", err)
	}
	counts := chart.Scheduler.LiveCounts()
	if counts["A"] != 0 || counts["C"] != 4 {
		t.Errorf("Expected reset counts, got %v", counts)
	}
	if chart.Config().Counts["C"] != 4 {
		t.Errorf("Expected chart config to reflect reset, got %v", chart.Config().Counts)
	}
	if err := cm.ResetChart("missing", nil); err == nil {
		t.Error("Expected error for missing chart")
	}
}

func TestChartManager_ForwardsEventsToNotifiers(t *testing.T) {
	clock := NewManualClock(epoch)
	cm := NewChartManager(clock)
	nm := NewNotificationManager()
	defer nm.Close()
	cm.SetNotificationManager(nm)

	notifier := &mockNotifier{id: "hook"}
	nm.RegisterNotifier(notifier)

	cfg := validChartConfig()
	cfg.Notifiers = []string{"hook"}
	chart, err := cm.CreateChart("chart-1", cfg)
	if err != nil {
		t.Fatalf("Failed to create chart: %v", err)
	}

	chart.Scheduler.StartReaction("A", "B", "C")
	clock.Advance(5 * time.Second)

	waitFor(t, "sequence completion to reach the notifier", func() bool {
		kinds := notifier.kinds()
		return len(kinds) > 0 && kinds[len(kinds)-1] == EventSequenceCompleted
	})
	notifier.mu.Lock()
	first := notifier.events[0]
	notifier.mu.Unlock()
	if first.ChartID != "chart-1" || first.Kind != EventSequenceStarted {
		t.Errorf("Expected first event tagged with chart, got %+v", first)
	}

	if err := cm.DeleteChart("chart-1"); err != nil {
		t.Errorf("Failed to delete chart: %v", err)
	}
}

func TestChartManager_ConcurrentAccess(t *testing.T) {
	cm := NewChartManager(NewManualClock(epoch))
	defer cm.Close()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := ChartID(string(rune('a' + i)))
			if _, err := cm.CreateChart(id, validChartConfig()); err != nil {
				t.Errorf("Failed to create chart %s: %v", id, err)
				return
			}
			chart, _ := cm.GetChart(id)
			chart.Scheduler.Consume("B", 2)
		}(i)
	}
	wg.Wait()
	if len(cm.ListCharts()) != 10 {
		t.Errorf("Expected 10 charts, got %d", len(cm.ListCharts()))
	}
}
