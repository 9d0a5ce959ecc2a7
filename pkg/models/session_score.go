package models

// MissedAnswer records an incorrect math answer for the session summary
type MissedAnswer struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
}

// SessionScore is the per-session tally. It is never persisted.
type SessionScore struct {
	Correct   int            `json:"correct"`
	Incorrect int            `json:"incorrect"`
	Missed    []MissedAnswer `json:"missed,omitempty"`
}

// Record adds one answer to the tally
func (s *SessionScore) Record(isCorrect bool) {
	if isCorrect {
		s.Correct++
		return
	}
	s.Incorrect++
}

// Reset clears the tally
func (s *SessionScore) Reset() {
	s.Correct = 0
	s.Incorrect = 0
	s.Missed = nil
}

// Total returns the number of answers in this session
func (s *SessionScore) Total() int {
	return s.Correct + s.Incorrect
}
