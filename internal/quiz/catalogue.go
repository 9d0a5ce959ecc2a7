package quiz

import (
	"sort"

	"github.com/example/wordquiz/pkg/models"
)

// Categories lists the GL-level math topics per category
var Categories = map[string][]string{
	"Number": {
		"Place value", "Ordering", "Rounding", "Number properties",
		"Fractions", "Decimals", "Percentages", "Ratio and proportion",
		"Mental math", "Calculator skills",
	},
	"Algebra": {
		"Sequences", "Function machines", "Substitution", "Simple equations",
		"Formulae", "Expressions",
	},
	"Geometry": {
		"Properties of shapes", "Angles", "Symmetry", "Coordinates",
		"Perimeter and area", "Volume", "Transformations",
	},
	"Measures": {
		"Time", "Money", "Length", "Mass", "Capacity", "Units conversion",
	},
	"Statistics": {
		"Data collection", "Data presentation", "Averages", "Probability",
	},
	"Problem Solving": {
		"Multi-step problems", "Word problems", "Logical reasoning",
		"Visual puzzles", "Pattern recognition",
	},
}

// Difficulties are the supported difficulty levels
var Difficulties = []string{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}

// SampleProblems are served when no problem can be generated
var SampleProblems = []models.MathProblem{
	{
		ID:            "sample-1",
		Question:      "Emma has 24 marbles. She gives 1/3 of her marbles to Jack and 1/4 of the remaining marbles to Sarah. How many marbles does Emma have left?",
		CorrectAnswer: "12",
		Category:      "Number",
		Topic:         "Fractions",
		Difficulty:    models.DifficultyMedium,
		Explanation:   "Emma starts with 24 marbles. She gives 1/3 of them to Jack, which is 24 × (1/3) = 8 marbles. So Emma has 24 - 8 = 16 marbles left. Then she gives 1/4 of these 16 marbles to Sarah, which is 16 × (1/4) = 4 marbles. So Emma has 16 - 4 = 12 marbles left.",
	},
	{
		ID:            "sample-2",
		Question:      "A rectangular garden is 15 meters long and 10 meters wide. What is the area of the garden in square meters?",
		CorrectAnswer: "150",
		Category:      "Geometry",
		Topic:         "Perimeter and area",
		Difficulty:    models.DifficultyEasy,
		Explanation:   "The area of a rectangle is calculated by multiplying the length by the width. So the area is 15 meters × 10 meters = 150 square meters.",
	},
	{
		ID:            "sample-3",
		Question:      "If 5 workers can build a wall in 6 days, how many days would it take 3 workers to build the same wall, assuming all workers work at the same rate?",
		CorrectAnswer: "10",
		Category:      "Number",
		Topic:         "Ratio and proportion",
		Difficulty:    models.DifficultyHard,
		Explanation:   "This is an inverse proportion problem. The time taken is inversely proportional to the number of workers. We can set up the equation: 5 workers × 6 days = 3 workers × x days. Solving for x: x = (5 × 6) ÷ 3 = 30 ÷ 3 = 10 days.",
	},
}

// ProblemParams selects what kind of math problem to generate
type ProblemParams struct {
	Category   string
	Topic      string
	Difficulty string
}

// CacheKey identifies generated problems with these parameters
func (p ProblemParams) CacheKey() string {
	return "math_" + p.Category + "_" + p.Topic + "_" + p.Difficulty
}

func categoryNames() []string {
	names := make([]string, 0, len(Categories))
	for name := range Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// randomParams picks a category, one of its topics and a difficulty
func randomParams(intn func(int) int) ProblemParams {
	names := categoryNames()
	category := names[intn(len(names))]
	topics := Categories[category]
	return ProblemParams{
		Category:   category,
		Topic:      topics[intn(len(topics))],
		Difficulty: Difficulties[intn(len(Difficulties))],
	}
}
