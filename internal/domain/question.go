package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Question is one immutable multiple-choice item
type Question struct {
	ID            int      `yaml:"id" json:"id"`
	Prompt        string   `yaml:"prompt" json:"prompt"`
	Options       []string `yaml:"options" json:"options"`
	CorrectOption string   `yaml:"correctOption" json:"-"`
}

// HasOption checks if choice is one of the question's options
func (q Question) HasOption(choice string) bool {
	for _, o := range q.Options {
		if o == choice {
			return true
		}
	}
	return false
}

// QuestionView is the student-facing view of a question (no correct option)
type QuestionView struct {
	Index   int      `json:"index"`
	ID      int      `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// QuestionBank is the canonical ordered question list, loaded once and never mutated
type QuestionBank struct {
	questions []Question
}

type questionFile struct {
	Questions []Question `yaml:"questions"`
}

// NewQuestionBank validates and copies the given questions
func NewQuestionBank(questions []Question) (*QuestionBank, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyQuestionBank
	}

	seen := make(map[int]bool, len(questions))
	copied := make([]Question, 0, len(questions))
	for i, q := range questions {
		if q.Prompt == "" || len(q.Options) == 0 {
			return nil, fmt.Errorf("question %d: %w", i, ErrInvalidQuestion)
		}
		if !q.HasOption(q.CorrectOption) {
			return nil, fmt.Errorf("question %d: correct option %q not in options: %w", i, q.CorrectOption, ErrInvalidQuestion)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("question %d: duplicate id %d: %w", i, q.ID, ErrInvalidQuestion)
		}
		seen[q.ID] = true

		options := make([]string, len(q.Options))
		copy(options, q.Options)
		q.Options = options
		copied = append(copied, q)
	}

	return &QuestionBank{questions: copied}, nil
}

// LoadQuestionBank reads a YAML question file of the form {questions: [...]}
func LoadQuestionBank(path string) (*QuestionBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}

	var f questionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse question file: %w", err)
	}

	return NewQuestionBank(f.Questions)
}

// DefaultQuestionBank returns the built-in sample exam
func DefaultQuestionBank() *QuestionBank {
	bank, err := NewQuestionBank(defaultQuestions)
	if err != nil {
		panic("domain: default question bank is invalid: " + err.Error())
	}
	return bank
}

// Len returns the number of questions
func (b *QuestionBank) Len() int {
	return len(b.questions)
}

// Question returns the question at index i
func (b *QuestionBank) Question(i int) (Question, bool) {
	if i < 0 || i >= len(b.questions) {
		return Question{}, false
	}
	q := b.questions[i]
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	q.Options = options
	return q, true
}

// Views returns the student-facing list of questions
func (b *QuestionBank) Views() []QuestionView {
	views := make([]QuestionView, 0, len(b.questions))
	for i, q := range b.questions {
		options := make([]string, len(q.Options))
		copy(options, q.Options)
		views = append(views, QuestionView{
			Index:   i,
			ID:      q.ID,
			Prompt:  q.Prompt,
			Options: options,
		})
	}
	return views
}

// Score counts the questions whose answer equals the correct option.
// It walks the canonical list, so every question contributes exactly once
// and answers keyed outside the list are ignored.
func (b *QuestionBank) Score(answers map[int]string) int {
	score := 0
	for i, q := range b.questions {
		if answer, ok := answers[i]; ok && answer == q.CorrectOption {
			score++
		}
	}
	return score
}

var defaultQuestions = []Question{
	{
		ID:            1,
		Prompt:        "What is the capital of France?",
		Options:       []string{"London", "Berlin", "Paris", "Madrid"},
		CorrectOption: "Paris",
	},
	{
		ID:            2,
		Prompt:        "Which planet is known as the Red Planet?",
		Options:       []string{"Earth", "Mars", "Jupiter", "Venus"},
		CorrectOption: "Mars",
	},
	{
		ID:            3,
		Prompt:        "What is 2 + 2?",
		Options:       []string{"3", "4", "5", "6"},
		CorrectOption: "4",
	},
	{
		ID:            4,
		Prompt:        "Which of the following is NOT a primary color?",
		Options:       []string{"Red", "Blue", "Green", "Yellow"},
		CorrectOption: "Green",
	},
	{
		ID:            5,
		Prompt:        "What is the largest mammal in the world?",
		Options:       []string{"Elephant", "Blue Whale", "Giraffe", "Hippopotamus"},
		CorrectOption: "Blue Whale",
	},
}
