package runner

// State is where a single run is in its lock lifecycle
type State int

const (
	Unlocked State = iota
	Locking
	Locked
	Executing
	Unlocking
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Locking:
		return "locking"
	case Locked:
		return "locked"
	case Executing:
		return "executing"
	case Unlocking:
		return "unlocking"
	default:
		return "unknown"
	}
}
