package domain

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// LogTimeFormat is how violation timestamps are rendered in submitted logs
const LogTimeFormat = "15:04:05"

// Violation represents one detected rule breach
type Violation struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	// Hash chains this entry to the one before it
	Hash string `json:"hash"`
}

// String renders the violation the way it appears in a submission
func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s", v.Timestamp.Format(LogTimeFormat), v.Message)
}

// ViolationLog is an append-only, hash-chained record of violations.
// The warning count is its length; there is no separate counter to drift.
type ViolationLog struct {
	entries []Violation
	head    [32]byte
}

// NewViolationLog creates an empty log
func NewViolationLog() *ViolationLog {
	return &ViolationLog{entries: make([]Violation, 0)}
}

// Append records a violation observed at the given time
func (l *ViolationLog) Append(at time.Time, message string) Violation {
	l.head = chainHash(l.head, at, message)
	v := Violation{
		Timestamp: at,
		Message:   message,
		Hash:      hex.EncodeToString(l.head[:]),
	}
	l.entries = append(l.entries, v)
	return v
}

// WarningCount returns the number of recorded violations
func (l *ViolationLog) WarningCount() int {
	return len(l.entries)
}

// Entries returns a copy of the recorded violations in order
func (l *ViolationLog) Entries() []Violation {
	entries := make([]Violation, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// Messages renders every entry as "[HH:MM:SS] message"
func (l *ViolationLog) Messages() []string {
	messages := make([]string, 0, len(l.entries))
	for _, v := range l.entries {
		messages = append(messages, v.String())
	}
	return messages
}

// Head returns the hex hash of the most recent entry, or "" when empty
func (l *ViolationLog) Head() string {
	if len(l.entries) == 0 {
		return ""
	}
	return hex.EncodeToString(l.head[:])
}

// VerifyChain recomputes the hash chain over entries and reports the first mismatch
func VerifyChain(entries []Violation) error {
	var prev [32]byte
	for i, v := range entries {
		prev = chainHash(prev, v.Timestamp, v.Message)
		if hex.EncodeToString(prev[:]) != v.Hash {
			return fmt.Errorf("entry %d: %w", i, ErrBrokenChain)
		}
	}
	return nil
}

func chainHash(prev [32]byte, at time.Time, message string) [32]byte {
	h := blake3.New()
	h.Write(prev[:])
	h.Write([]byte(at.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write([]byte(message))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
