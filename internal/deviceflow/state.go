package deviceflow

// State is a step of the polling state machine
type State int32

const (
	StateIdle State = iota
	StateWaiting
	StatePolling
	StateSuccess
	StateDenied
	StateExpired
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWaiting:
		return "WAITING"
	case StatePolling:
		return "POLLING"
	case StateSuccess:
		return "SUCCESS"
	case StateDenied:
		return "DENIED"
	case StateExpired:
		return "EXPIRED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions follow
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateDenied, StateExpired, StateFailed:
		return true
	default:
		return false
	}
}

// Observer receives state transitions
type Observer func(State)

// PollObserver receives every classified failed poll, including the
// authorization_pending answers that keep the loop going
type PollObserver func(*PollError)
