package threshold

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DefaultMaxTokens is the assumed context-window budget when none is
// configured.
const DefaultMaxTokens = 200_000

// State is the persisted per-task, per-iteration usage record. It is read
// and written by a single token watcher process; the flock guards the
// read-modify-write cycle against an overlapping explicit reset.
type State struct {
	Iteration string  `json:"iteration"`
	Tokens    int     `json:"tokens"`
	MaxTokens int     `json:"max_tokens"`
	Percent   float64 `json:"percent"`
	Highest   Level   `json:"highest"`
}

// Tracker computes and persists context usage for one task.
type Tracker struct {
	statePath string
	lock      *flock.Flock
	maxTokens int
}

// NewTracker creates a Tracker storing state under the task's comms tree.
func NewTracker(taskDir string, maxTokens int) *Tracker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	statePath := filepath.Join(taskDir, "comms", ".threshold_state.json")
	return &Tracker{
		statePath: statePath,
		lock:      flock.New(statePath + ".lock"),
		maxTokens: maxTokens,
	}
}

// StartIteration resets the tracker for a new iteration. This is the only
// operation that may move the ratchet back down.
func (t *Tracker) StartIteration(iteration string) error {
	return t.withLock(func() error {
		return t.save(State{
			Iteration: iteration,
			MaxTokens: t.maxTokens,
			Highest:   LevelOK,
		})
	})
}

// Update feeds one transcript line to the tracker. Lines without a usage
// figure are skipped without error. When the line is an agent-turn boundary,
// the running percentage is recomputed, the highest-reached level ratchets
// up if needed, and the state is persisted. Returns whether state changed.
func (t *Tracker) Update(line []byte) (bool, error) {
	tokens, ok := ParseUsage(line)
	if !ok {
		return false, nil
	}

	err := t.withLock(func() error {
		state, err := t.load()
		if err != nil {
			return err
		}
		state.Tokens = tokens
		state.MaxTokens = t.maxTokens
		state.Percent = 100 * float64(tokens) / float64(t.maxTokens)
		if level := LevelForPercent(state.Percent); level > state.Highest {
			state.Highest = level
		}
		return t.save(state)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Percent returns the most recently computed usage percentage.
func (t *Tracker) Percent() (float64, error) {
	var pct float64
	err := t.withLock(func() error {
		state, err := t.load()
		if err != nil {
			return err
		}
		pct = state.Percent
		return nil
	})
	return pct, err
}

// CheckThreshold returns the current severity level. Within an iteration the
// result is non-decreasing: a percentage drop (context compaction) never
// walks the level back below the highest stage already reached.
func (t *Tracker) CheckThreshold() (Level, error) {
	var level Level
	err := t.withLock(func() error {
		state, err := t.load()
		if err != nil {
			return err
		}
		level = LevelForPercent(state.Percent)
		if state.Highest > level {
			level = state.Highest
		}
		return nil
	})
	return level, err
}

// load reads the persisted state, returning a zero state when none exists
// yet (monitoring starts before the first explicit iteration reset).
func (t *Tracker) load() (State, error) {
	data, err := os.ReadFile(t.statePath) //nolint:gosec // path derived from task dir
	if errors.Is(err, os.ErrNotExist) {
		return State{MaxTokens: t.maxTokens, Highest: LevelOK}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read threshold state %s: %w", t.statePath, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse threshold state %s: %w", t.statePath, err)
	}
	return state, nil
}

// save writes the state file.
func (t *Tracker) save(state State) error {
	if err := os.MkdirAll(filepath.Dir(t.statePath), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode threshold state: %w", err)
	}
	if err := os.WriteFile(t.statePath, data, 0o644); err != nil { //nolint:gosec // task-local state file
		return fmt.Errorf("write threshold state %s: %w", t.statePath, err)
	}
	return nil
}

// withLock runs fn while holding the cross-process state lock.
func (t *Tracker) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(t.statePath), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := t.lock.Lock(); err != nil {
		return fmt.Errorf("lock threshold state: %w", err)
	}
	defer func() { _ = t.lock.Unlock() }()
	return fn()
}
