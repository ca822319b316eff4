package models

// ConnectionState is the lifecycle state of the control connection
type ConnectionState int32

const (
	ConnectionStateClosed ConnectionState = iota
	ConnectionStateConnecting
	ConnectionStateOpen
	ConnectionStateClosing
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateOpen:
		return "open"
	case ConnectionStateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// CanTransitionTo reports whether moving from s to next is a legal step
func (s ConnectionState) CanTransitionTo(next ConnectionState) bool {
	switch s {
	case ConnectionStateClosed:
		return next == ConnectionStateConnecting
	case ConnectionStateConnecting:
		return next == ConnectionStateOpen || next == ConnectionStateClosed
	case ConnectionStateOpen:
		return next == ConnectionStateClosing
	case ConnectionStateClosing:
		return next == ConnectionStateClosed
	}
	return false
}
