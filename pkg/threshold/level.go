// Package threshold tracks context-window usage for a worker agent and turns
// a continuous usage percentage into a one-way ladder of discrete severity
// levels. The highest level reached is a ratchet: it never decreases within
// an iteration, even when compaction temporarily drops the computed percent.
package threshold

// Level is the ordered usage-alert stage.
type Level int

// Severity levels, in strictly increasing order.
const (
	LevelOK Level = iota
	LevelInfo
	LevelWarning
	LevelCritical
	LevelDanger
)

// Percentage cut points for each level.
const (
	infoPercent     = 30
	warningPercent  = 50
	criticalPercent = 60
	dangerPercent   = 70
)

// String returns the level's name.
func (l Level) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelDanger:
		return "danger"
	}
	return "unknown"
}

// LevelForPercent maps a usage percentage to its severity level.
func LevelForPercent(pct float64) Level {
	switch {
	case pct >= dangerPercent:
		return LevelDanger
	case pct >= criticalPercent:
		return LevelCritical
	case pct >= warningPercent:
		return LevelWarning
	case pct >= infoPercent:
		return LevelInfo
	}
	return LevelOK
}

// ShouldAlert reports whether crossing from prev to cur warrants an alert:
// true only when cur strictly exceeds prev. This is the one-way ratchet that
// prevents duplicate or out-of-order alerts as the percentage oscillates
// around a boundary.
func ShouldAlert(prev, cur Level) bool {
	return cur > prev
}
