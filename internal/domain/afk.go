package domain

import "time"

type AFKState int

const (
	StateActive AFKState = iota
	StateAutoAFK
	StateManualAFK
)

func (s AFKState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateAutoAFK:
		return "auto_afk"
	case StateManualAFK:
		return "manual_afk"
	default:
		return "unknown"
	}
}

func (s AFKState) IsAFK() bool {
	return s == StateAutoAFK || s == StateManualAFK
}

// TransitionReason tells listeners what caused a state change.
type TransitionReason string

const (
	ReasonInactivity TransitionReason = "inactivity"
	ReasonActivity   TransitionReason = "activity"
	ReasonToggle     TransitionReason = "toggle"
	ReasonPattern    TransitionReason = "pattern"
	ReasonAdmin      TransitionReason = "admin"
)

type Transition struct {
	Session SessionID
	From    AFKState
	To      AFKState
	Reason  TransitionReason
	At      time.Time
}

// SessionSummary is emitted when a session ends.
type SessionSummary struct {
	Session     SessionID
	FinalState  AFKState
	JoinedAt    time.Time
	EndedAt     time.Time
	AFKEpisodes int
	AFKTotal    time.Duration
}
