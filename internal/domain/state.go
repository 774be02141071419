package domain

// State represents where an exam attempt is in its lifecycle
type State string

const (
	StateIdle       State = "IDLE"        // Session created, nothing started
	StateSetup      State = "SETUP"       // Camera and face detection warming up
	StateReady      State = "READY"       // Identity captured and detection cycled once
	StateInProgress State = "IN_PROGRESS" // Timer running, guards installed
	StateCompleted  State = "COMPLETED"   // Terminal, answers frozen
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// CanTransitionTo checks if a transition from current state to target state is valid
func (s State) CanTransitionTo(target State) bool {
	validTransitions := map[State][]State{
		StateIdle:       {StateSetup},
		StateSetup:      {StateReady},
		StateReady:      {StateInProgress},
		StateInProgress: {StateCompleted},
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true once nothing may leave the state
func (s State) IsTerminal() bool {
	return s == StateCompleted
}

// Monitoring reports whether violations are recorded in this state
func (s State) Monitoring() bool {
	return s == StateSetup || s == StateReady || s == StateInProgress
}
