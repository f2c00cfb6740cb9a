package session

// State is the lifecycle of the request a session is currently serving.
type State int

const (
	StateIdle State = iota
	// StateAwaitingFirstDelta is entered when the request has been sent and nothing has come back yet.
	StateAwaitingFirstDelta
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstDelta:
		return "awaiting-first-delta"
	case StateStreaming:
		return "streaming"
	}
	return "unknown"
}

// FailurePolicy decides what happens to the user turn of a failed request.
type FailurePolicy int

const (
	// FailurePolicyKeepUserTurn leaves the user turn in history without an answer.
	FailurePolicyKeepUserTurn FailurePolicy = iota
	// FailurePolicyRollback removes the user turn again.
	FailurePolicyRollback
)

func (p FailurePolicy) String() string {
	if p == FailurePolicyRollback {
		return "rollback"
	}
	return "keep-user-turn"
}
