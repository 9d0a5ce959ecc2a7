package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/example/wordquiz/internal/apperr"
	"github.com/example/wordquiz/pkg/models"
)

const tutorRole = "You are a tutor preparing a 10-12 year old child for grammar school (GL level) exams."

var validate = validator.New()

// Define returns a brief definition of word
func (c *Client) Define(ctx context.Context, word string) (string, error) {
	prompt := fmt.Sprintf(
		"Give a brief definition of the English word '%s'. Keep it under 30 words. "+
			"Return only the definition, without the word itself or any other text.",
		word,
	)

	definition, err := c.chat(ctx, "define", []Message{
		{Role: "system", Content: tutorRole},
		{Role: "user", Content: prompt},
	}, chatOptions{maxTokens: 100, temperature: 0.3})
	if err != nil {
		return "", err
	}
	if definition == "" {
		return "", apperr.DataIntegrity("empty definition returned", nil)
	}
	return definition, nil
}

// Distractors returns n plausible but incorrect definitions of word
func (c *Client) Distractors(ctx context.Context, word, definition string, n int) ([]string, error) {
	prompt := fmt.Sprintf(
		"The English word '%s' means: %s\n"+
			"Write %d plausible but incorrect definitions for it, each under 30 words and clearly different from the correct one. "+
			`Return JSON in this exact format: {"incorrect_options": ["...", "..."]}`,
		word, definition, n,
	)

	content, err := c.chat(ctx, "distractors", []Message{
		{Role: "system", Content: tutorRole},
		{Role: "user", Content: prompt},
	}, chatOptions{maxTokens: 300, temperature: 0.7, jsonMode: true})
	if err != nil {
		return nil, err
	}

	var payload struct {
		IncorrectOptions []string `json:"incorrect_options"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &payload); err != nil {
		return nil, apperr.DataIntegrity("malformed distractor payload", err)
	}

	options := make([]string, 0, n)
	for _, o := range payload.IncorrectOptions {
		if o = strings.TrimSpace(o); o != "" && len(options) < n {
			options = append(options, o)
		}
	}
	if len(options) < n {
		return nil, apperr.DataIntegrity(fmt.Sprintf("expected %d distractors, got %d", n, len(options)), nil)
	}
	return options, nil
}

// GenerateProblem creates a word problem for the given category, topic and difficulty
func (c *Client) GenerateProblem(ctx context.Context, category, topic, difficulty string) (*models.MathProblem, error) {
	prompt := fmt.Sprintf(
		"Create a %s level math problem on the topic of %s within the category of %s. "+
			"Return JSON in this exact format:\n"+
			`{"question": "The full word problem", "correct_answer": "The answer as a number or short string", `+
			`"category": "%s", "topic": "%s", "difficulty": "%s", "explanation": "Step-by-step solution explanation"}`,
		difficulty, topic, category, category, topic, difficulty,
	)

	content, err := c.chat(ctx, "generate_problem", []Message{
		{Role: "system", Content: tutorRole},
		{Role: "user", Content: prompt},
	}, chatOptions{maxTokens: 500, temperature: 0.7, jsonMode: true})
	if err != nil {
		return nil, err
	}

	var problem models.MathProblem
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &problem); err != nil {
		return nil, apperr.DataIntegrity("malformed math problem payload", err)
	}
	problem.ID = uuid.NewString()
	if problem.Category == "" {
		problem.Category = category
	}
	if problem.Topic == "" {
		problem.Topic = topic
	}
	problem.Difficulty = strings.ToLower(strings.TrimSpace(problem.Difficulty))
	if problem.Difficulty == "" {
		problem.Difficulty = difficulty
	}

	if err := validate.Struct(&problem); err != nil {
		return nil, apperr.DataIntegrity("invalid math problem", err)
	}
	return &problem, nil
}

// Explain returns a step-by-step explanation of how to reach answer
func (c *Client) Explain(ctx context.Context, question, answer string) (string, error) {
	prompt := fmt.Sprintf(
		"Provide a clear, step-by-step explanation for solving this math problem:\n"+
			"Problem: %s\nAnswer: %s\n"+
			"Break down the problem-solving process into logical steps. Keep the explanation under 200 words.",
		question, answer,
	)

	explanation, err := c.chat(ctx, "explain", []Message{
		{Role: "system", Content: tutorRole},
		{Role: "user", Content: prompt},
	}, chatOptions{maxTokens: 400, temperature: 0.5})
	if err != nil {
		return "", err
	}
	if explanation == "" {
		return "", apperr.DataIntegrity("empty explanation returned", nil)
	}
	return explanation, nil
}

// stripCodeFence removes a ```json fence some models wrap around JSON replies
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
