package threshold

import (
	"fmt"
	"testing"
)

func TestLevelForPercent(t *testing.T) {
	cases := []struct {
		pct  float64
		want Level
	}{
		{0, LevelOK},
		{29.9, LevelOK},
		{30, LevelInfo},
		{49.9, LevelInfo},
		{50, LevelWarning},
		{59.9, LevelWarning},
		{60, LevelCritical},
		{69.9, LevelCritical},
		{70, LevelDanger},
		{95, LevelDanger},
	}
	for _, tc := range cases {
		if got := LevelForPercent(tc.pct); got != tc.want {
			t.Errorf("LevelForPercent(%v) = %s, want %s", tc.pct, got, tc.want)
		}
	}
}

func TestShouldAlert(t *testing.T) {
	cases := []struct {
		prev, cur Level
		want      bool
	}{
		{LevelOK, LevelInfo, true},
		{LevelInfo, LevelWarning, true},
		{LevelWarning, LevelDanger, true},
		{LevelInfo, LevelInfo, false},
		{LevelWarning, LevelInfo, false},
		{LevelDanger, LevelOK, false},
	}
	for _, tc := range cases {
		if got := ShouldAlert(tc.prev, tc.cur); got != tc.want {
			t.Errorf("ShouldAlert(%s, %s) = %v, want %v", tc.prev, tc.cur, got, tc.want)
		}
	}
}

// usageLine fabricates an assistant transcript line totaling the given tokens.
func usageLine(tokens int) []byte {
	return fmt.Appendf(nil,
		`{"type":"assistant","message":{"usage":{"input_tokens":%d,"cache_creation_input_tokens":0,"cache_read_input_tokens":0,"output_tokens":0}}}`,
		tokens)
}

func TestParseUsage(t *testing.T) {
	t.Run("assistant turn with usage", func(t *testing.T) {
		line := []byte(`{"type":"assistant","message":{"usage":{"input_tokens":100,"cache_creation_input_tokens":20,"cache_read_input_tokens":30,"output_tokens":50}}}`)
		tokens, ok := ParseUsage(line)
		if !ok {
			t.Fatal("expected usage line to parse")
		}
		if tokens != 200 {
			t.Errorf("tokens = %d, want 200", tokens)
		}
	})

	t.Run("non-assistant lines are skipped", func(t *testing.T) {
		for _, line := range []string{
			`{"type":"user","message":{"content":"hi"}}`,
			`{"type":"assistant","message":{"usage":{}}}`,
			`not json at all`,
			``,
		} {
			if _, ok := ParseUsage([]byte(line)); ok {
				t.Errorf("expected line %q to be skipped", line)
			}
		}
	})
}

func TestTrackerUpdateAndPercent(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker(dir, 1000)

	if err := tracker.StartIteration("iter-1"); err != nil {
		t.Fatalf("StartIteration failed: %v", err)
	}

	updated, err := tracker.Update(usageLine(350))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated {
		t.Fatal("expected usage line to update state")
	}

	pct, err := tracker.Percent()
	if err != nil {
		t.Fatalf("Percent failed: %v", err)
	}
	if pct != 35 {
		t.Errorf("Percent = %v, want 35", pct)
	}

	updated, err = tracker.Update([]byte(`{"type":"user"}`))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated {
		t.Error("non-usage line should be a no-op")
	}
}

func TestTrackerRatchetMonotonicity(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker(dir, 1000)
	if err := tracker.StartIteration("iter-1"); err != nil {
		t.Fatalf("StartIteration failed: %v", err)
	}

	// Percentages 10, 35, 55, 35, 65: exactly three alerts (info at 35,
	// warning at 55, critical at 65) and none on the drop back to 35.
	percents := []int{10, 35, 55, 35, 65}
	wantAlerts := []Level{LevelInfo, LevelWarning, LevelCritical}

	prev := LevelOK
	var alerts []Level
	var levels []Level
	for _, p := range percents {
		if _, err := tracker.Update(usageLine(p * 10)); err != nil {
			t.Fatalf("Update(%d%%) failed: %v", p, err)
		}
		level, err := tracker.CheckThreshold()
		if err != nil {
			t.Fatalf("CheckThreshold failed: %v", err)
		}
		levels = append(levels, level)
		if ShouldAlert(prev, level) {
			alerts = append(alerts, level)
			prev = level
		}
	}

	if len(alerts) != len(wantAlerts) {
		t.Fatalf("got %d alerts %v, want %d %v", len(alerts), alerts, len(wantAlerts), wantAlerts)
	}
	for i := range wantAlerts {
		if alerts[i] != wantAlerts[i] {
			t.Errorf("alert %d = %s, want %s", i, alerts[i], wantAlerts[i])
		}
	}

	// CheckThreshold never decreases within the iteration.
	for i := 1; i < len(levels); i++ {
		if levels[i] < levels[i-1] {
			t.Errorf("severity walked backward: %s after %s", levels[i], levels[i-1])
		}
	}
}

func TestTrackerResetOnNewIteration(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker(dir, 1000)
	if err := tracker.StartIteration("iter-1"); err != nil {
		t.Fatalf("StartIteration failed: %v", err)
	}
	if _, err := tracker.Update(usageLine(800)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	level, err := tracker.CheckThreshold()
	if err != nil {
		t.Fatalf("CheckThreshold failed: %v", err)
	}
	if level != LevelDanger {
		t.Fatalf("level = %s, want danger", level)
	}

	// Explicit new-iteration start is the only reset.
	if err := tracker.StartIteration("iter-2"); err != nil {
		t.Fatalf("StartIteration failed: %v", err)
	}
	level, err = tracker.CheckThreshold()
	if err != nil {
		t.Fatalf("CheckThreshold failed: %v", err)
	}
	if level != LevelOK {
		t.Errorf("level after reset = %s, want ok", level)
	}
}

func TestTrackerStatePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	first := NewTracker(dir, 1000)
	if err := first.StartIteration("iter-1"); err != nil {
		t.Fatalf("StartIteration failed: %v", err)
	}
	if _, err := first.Update(usageLine(550)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// A fresh instance (e.g. a separate CLI process) sees the same state.
	second := NewTracker(dir, 1000)
	level, err := second.CheckThreshold()
	if err != nil {
		t.Fatalf("CheckThreshold failed: %v", err)
	}
	if level != LevelWarning {
		t.Errorf("level = %s, want warning", level)
	}
}
