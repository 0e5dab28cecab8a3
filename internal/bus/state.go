package bus

// State is the lifecycle state of a Session.
type State int32

// Session states.
const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
	StateFaulted
)

// String returns the lower-case state name used in logs and health messages.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}
