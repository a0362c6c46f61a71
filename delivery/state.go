package delivery

// State is the lifecycle position of one delivery.
type State int

const (
	Idle State = iota
	Activated
	Completed
	FailedPreCommit
	Substituting
	FailedPostCommit
	Aborted
)

// String returns the state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Activated:
		return "activated"
	case Completed:
		return "completed"
	case FailedPreCommit:
		return "failed_pre_commit"
	case Substituting:
		return "substituting"
	case FailedPostCommit:
		return "failed_post_commit"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Completed || s == Aborted
}
