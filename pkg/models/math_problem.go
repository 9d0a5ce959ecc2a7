package models

import (
	"strconv"
	"strings"
	"time"
)

// Difficulty levels used when generating math problems
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// MathProblem represents a generated or imported word problem.
// CorrectAnswer is kept as text; numeric answers are compared with a tolerance.
type MathProblem struct {
	ID            string    `json:"id" validate:"required"`
	Question      string    `json:"question" validate:"required"`
	CorrectAnswer Answer    `json:"correct_answer" validate:"required"`
	Category      string    `json:"category" validate:"required"`
	Topic         string    `json:"topic" validate:"required"`
	Difficulty    string    `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Explanation   string    `json:"explanation"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// Answer holds a canonical answer that may arrive as a JSON number or string
type Answer string

// UnmarshalJSON accepts both `12` and `"12"`
func (a *Answer) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*a = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		*a = Answer(strings.TrimSpace(unquoted))
		return nil
	}
	*a = Answer(s)
	return nil
}

// String returns the answer text
func (a Answer) String() string {
	return string(a)
}
