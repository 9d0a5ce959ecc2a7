package models

import "time"

// Word represents a vocabulary word with its generated multiple choice content
type Word struct {
	Word             string    `json:"word"`
	Definition       string    `json:"definition"`
	IncorrectOptions []string  `json:"incorrect_options"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// Options returns the definition together with the distractors, unshuffled
func (w Word) Options() []string {
	options := make([]string, 0, len(w.IncorrectOptions)+1)
	options = append(options, w.IncorrectOptions...)
	return append(options, w.Definition)
}
