package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SubmissionInput is the payload accepted by submission ingestion
type SubmissionInput struct {
	StudentName     string         `json:"studentName"`
	Score           int            `json:"score"`
	TotalQuestions  int            `json:"totalQuestions"`
	CheatingLogs    []string       `json:"cheatingLogs"`
	WarningCount    int            `json:"warningCount"`
	Answers         map[int]string `json:"answers"`
	FullscreenExits int            `json:"fullscreenExits"`
	// LogHash is the head of the violation hash chain, empty when no log was kept
	LogHash string `json:"logHash,omitempty"`
}

// Validate checks the fields ingestion requires
func (in SubmissionInput) Validate() error {
	if strings.TrimSpace(in.StudentName) == "" {
		return ErrStudentNameRequired
	}
	return nil
}

// Submission is a persisted submission with its server-assigned identity
type Submission struct {
	ID           string `json:"id"`
	TimestampISO string `json:"timestampIso"`
	SubmissionInput
}

// NewSubmission stamps an input with identity and server time
func NewSubmission(id string, at time.Time, in SubmissionInput) *Submission {
	if in.CheatingLogs == nil {
		in.CheatingLogs = []string{}
	}
	if in.Answers == nil {
		in.Answers = map[int]string{}
	}
	return &Submission{
		ID:              id,
		TimestampISO:    at.UTC().Format(time.RFC3339Nano),
		SubmissionInput: in,
	}
}

// SubmissionRecord is the immutable outcome of a completed session.
// It is assembled once, on completion, and handed to the persistence store.
type SubmissionRecord struct {
	SessionID           string           `json:"sessionId"`
	StudentName         string           `json:"studentName"`
	Score               int              `json:"score"`
	TotalQuestions      int              `json:"totalQuestions"`
	Violations          []Violation      `json:"violations"`
	WarningCount        int              `json:"warningCount"`
	Answers             map[int]string   `json:"answers"`
	FullscreenExitCount int              `json:"fullscreenExitCount"`
	LogHash             string           `json:"logHash,omitempty"`
	Reason              CompletionReason `json:"reason"`
	SubmittedAt         time.Time        `json:"submittedAt"`
}

// Input converts the record to the ingestion payload
func (r SubmissionRecord) Input() SubmissionInput {
	logs := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		logs = append(logs, v.String())
	}

	answers := make(map[int]string, len(r.Answers))
	for k, v := range r.Answers {
		answers[k] = v
	}

	return SubmissionInput{
		StudentName:     r.StudentName,
		Score:           r.Score,
		TotalQuestions:  r.TotalQuestions,
		CheatingLogs:    logs,
		WarningCount:    r.WarningCount,
		Answers:         answers,
		FullscreenExits: r.FullscreenExitCount,
		LogHash:         r.LogHash,
	}
}

// DecodeSubmissionInput parses an ingestion body leniently: only studentName
// is required, numbers that cannot be read become 0, and malformed logs or
// answers become empty.
func DecodeSubmissionInput(data []byte) (SubmissionInput, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return SubmissionInput{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	in := SubmissionInput{
		CheatingLogs: []string{},
		Answers:      map[int]string{},
	}

	if v, ok := raw["studentName"]; ok {
		_ = json.Unmarshal(v, &in.StudentName)
	}
	if err := in.Validate(); err != nil {
		return SubmissionInput{}, err
	}

	in.Score = coerceInt(raw["score"])
	in.TotalQuestions = coerceInt(raw["totalQuestions"])
	in.WarningCount = coerceInt(raw["warningCount"])
	in.FullscreenExits = coerceInt(raw["fullscreenExits"])

	if v, ok := raw["logHash"]; ok {
		var h string
		if json.Unmarshal(v, &h) == nil && isChainHash(h) {
			in.LogHash = h
		}
	}

	if v, ok := raw["cheatingLogs"]; ok {
		var items []json.RawMessage
		if json.Unmarshal(v, &items) == nil {
			for _, item := range items {
				var s string
				if json.Unmarshal(item, &s) == nil {
					in.CheatingLogs = append(in.CheatingLogs, s)
				}
			}
		}
	}

	if v, ok := raw["answers"]; ok {
		var items map[string]json.RawMessage
		if json.Unmarshal(v, &items) == nil {
			for key, item := range items {
				idx, err := strconv.Atoi(key)
				if err != nil {
					continue
				}
				var s string
				if json.Unmarshal(item, &s) == nil {
					in.Answers[idx] = s
				}
			}
		}
	}

	return in, nil
}

func coerceInt(v json.RawMessage) int {
	if len(v) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return clampFloat(f)
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return clampFloat(f)
		}
	}

	return 0
}

func clampFloat(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

func isChainHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
