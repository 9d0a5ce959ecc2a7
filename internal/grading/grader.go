package grading

import (
	"math"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold is strict on purpose: short definitions must match almost exactly
const DefaultThreshold = 0.9

// numericTolerance is the absolute difference under which two numbers are equal
const numericTolerance = 0.001

// Result is the outcome of grading one answer
type Result struct {
	IsCorrect  bool    `json:"is_correct"`
	Similarity float64 `json:"similarity"`
}

// Grade compares a free text answer with the canonical answer.
// Numeric answers are compared with a tolerance; everything else uses the
// sequence matching ratio of the normalized strings.
func Grade(userAnswer, canonical string, threshold float64) Result {
	want := Normalize(canonical)
	if want == "" {
		return Result{}
	}
	got := Normalize(userAnswer)

	if a, b, ok := parseNumbers(got, want); ok {
		if numbersEqual(a, b) {
			return Result{IsCorrect: true, Similarity: 1}
		}
		return Result{}
	}

	ratio := Similarity(got, want)
	return Result{
		IsCorrect:  ratio >= threshold,
		Similarity: ratio,
	}
}

// GradeExact accepts numbers within tolerance and otherwise requires the
// normalized strings to be equal
func GradeExact(userAnswer, canonical string) Result {
	want := Normalize(canonical)
	if want == "" {
		return Result{}
	}
	got := Normalize(userAnswer)

	if a, b, ok := parseNumbers(got, want); ok {
		if numbersEqual(a, b) {
			return Result{IsCorrect: true, Similarity: 1}
		}
		return Result{}
	}
	if got == want {
		return Result{IsCorrect: true, Similarity: 1}
	}
	return Result{Similarity: Similarity(got, want)}
}

// Normalize trims, lowercases and collapses whitespace runs to single spaces
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity returns 2*M/T over the characters of a and b.
// Two empty strings are considered identical.
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func numbersEqual(a, b float64) bool {
	return a == b || math.Abs(a-b) < numericTolerance
}

func parseNumbers(a, b string) (float64, float64, bool) {
	x, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, false
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, 0, false
	}
	return x, y, true
}
