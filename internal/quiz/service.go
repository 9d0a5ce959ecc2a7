package quiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/wordquiz/internal/apperr"
	"github.com/example/wordquiz/internal/cache"
	"github.com/example/wordquiz/internal/excel"
	"github.com/example/wordquiz/internal/grading"
	"github.com/example/wordquiz/internal/selection"
	"github.com/example/wordquiz/pkg/models"
)

const (
	FallbackDefinition  = "Definition temporarily unavailable"
	FallbackOption      = "Option temporarily unavailable"
	FallbackExplanation = "Explanation temporarily unavailable."
)

var errProviderDisabled = apperr.Provider("content provider not configured", false, nil)

// Provider generates quiz content, implemented by ai.Client
type Provider interface {
	Define(ctx context.Context, word string) (string, error)
	Distractors(ctx context.Context, word, definition string, n int) ([]string, error)
	GenerateProblem(ctx context.Context, category, topic, difficulty string) (*models.MathProblem, error)
	Explain(ctx context.Context, question, answer string) (string, error)
}

// Sheet is the tabular store holding the word list and saved problems, implemented by excel.Store
type Sheet interface {
	LoadWords() ([]string, error)
	Definitions() (map[string]string, error)
	SaveWord(word, definition string) error
	LoadProblems() ([]models.MathProblem, error)
	SaveProblem(p models.MathProblem) error
}

// Recorder tracks answers for one item kind, implemented by tracker.Tracker
type Recorder interface {
	RecordAnswer(ctx context.Context, itemID, userID string, isCorrect bool) error
	DailyLimitReached(ctx context.Context, userID string, limit int) (bool, error)
	Exposures(ctx context.Context, userID string) (map[string]int, error)
}

// Config holds the quiz limits and grading threshold
type Config struct {
	GradeThreshold    float64
	MaxExposure       int
	DailyWordLimit    int
	DailyProblemLimit int
	DistractorCount   int
}

// Caches groups the content caches used by the service
type Caches struct {
	Words        *cache.Cache[models.Word]
	Problems     *cache.Cache[models.MathProblem]
	Explanations *cache.Cache[string]
}

// WordQuestion is a multiple choice vocabulary question
type WordQuestion struct {
	Word          string   `json:"word"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// AnswerResult is the outcome of a submitted answer
type AnswerResult struct {
	Correct       bool                `json:"correct"`
	Similarity    float64             `json:"similarity"`
	CorrectAnswer string              `json:"correct_answer"`
	Message       string              `json:"result_message"`
	Explanation   string              `json:"explanation,omitempty"`
	Score         models.SessionScore `json:"updated_score"`
}

// Summary aggregates a session's results
type Summary struct {
	Correct   int                   `json:"correct"`
	Incorrect int                   `json:"incorrect"`
	Total     int                   `json:"total"`
	Missed    []models.MissedAnswer `json:"missed,omitempty"`
}

// Service serves vocabulary and math questions and grades the answers
type Service struct {
	cfg      Config
	provider Provider
	sheet    Sheet
	words    Recorder
	problems Recorder
	selector *selection.Selector
	caches   Caches
	log      *zap.Logger
}

// NewService creates the quiz service. provider may be nil, in which case
// only stored and fallback content is served.
func NewService(cfg Config, provider Provider, sheet Sheet, words, problems Recorder, caches Caches, selector *selection.Selector, log *zap.Logger) *Service {
	if cfg.GradeThreshold <= 0 {
		cfg.GradeThreshold = grading.DefaultThreshold
	}
	if cfg.MaxExposure <= 0 {
		cfg.MaxExposure = selection.DefaultMaxExposure
	}
	if cfg.DistractorCount <= 0 {
		cfg.DistractorCount = 3
	}
	if selector == nil {
		selector = selection.NewSelector()
	}
	return &Service{
		cfg:      cfg,
		provider: provider,
		sheet:    sheet,
		words:    words,
		problems: problems,
		selector: selector,
		caches:   caches,
		log:      log,
	}
}

// NextWord picks the next vocabulary word for userID and builds its question
func (s *Service) NextWord(ctx context.Context, userID string) (*WordQuestion, error) {
	if err := s.checkLimit(ctx, s.words, userID, s.cfg.DailyWordLimit); err != nil {
		return nil, err
	}

	all, err := s.sheet.LoadWords()
	if err != nil {
		s.log.Error("Failed to load words, using defaults", zap.Error(err))
		all = excel.DefaultWords
	}

	exposures, err := s.words.Exposures(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exposures: %w", err)
	}
	pool, err := selection.EligiblePool(all, exposures, s.cfg.MaxExposure)
	if err != nil {
		return nil, err
	}
	word, err := s.selector.PickNext(pool)
	if err != nil {
		return nil, err
	}

	data := s.wordData(ctx, word)
	options := data.Options()
	s.selector.Shuffle(options)

	return &WordQuestion{
		Word:          data.Word,
		Options:       options,
		CorrectAnswer: data.Definition,
	}, nil
}

// wordData returns the cached definition and distractors of word, falling
// back to placeholder content when nothing can be generated
func (s *Service) wordData(ctx context.Context, word string) models.Word {
	key := selection.NormalizeID(word)
	data, err := s.caches.Words.GetOrFetch(ctx, key, func(ctx context.Context) (models.Word, error) {
		return s.fetchWord(ctx, word)
	})
	if err == nil {
		return data
	}

	s.log.Warn("Serving fallback word content", zap.String("word", word), zap.Error(err))
	fallback := models.Word{
		Word:             word,
		Definition:       FallbackDefinition,
		IncorrectOptions: make([]string, s.cfg.DistractorCount),
	}
	for i := range fallback.IncorrectOptions {
		fallback.IncorrectOptions[i] = FallbackOption
	}
	// keep a real definition if one is stored
	if defs, derr := s.sheet.Definitions(); derr == nil && defs[key] != "" {
		fallback.Definition = defs[key]
	}
	return fallback
}

func (s *Service) fetchWord(ctx context.Context, word string) (models.Word, error) {
	if s.provider == nil {
		return models.Word{}, errProviderDisabled
	}

	definition := ""
	if defs, err := s.sheet.Definitions(); err != nil {
		s.log.Warn("Failed to read stored definitions", zap.Error(err))
	} else {
		definition = defs[selection.NormalizeID(word)]
	}

	generated := definition == ""
	if generated {
		var err error
		if definition, err = s.provider.Define(ctx, word); err != nil {
			return models.Word{}, err
		}
	}

	distractors, err := s.provider.Distractors(ctx, word, definition, s.cfg.DistractorCount)
	if err != nil {
		return models.Word{}, err
	}

	if generated {
		if err := s.sheet.SaveWord(word, definition); err != nil {
			s.log.Error("Failed to save definition", zap.String("word", word), zap.Error(err))
		}
	}
	return models.Word{Word: word, Definition: definition, IncorrectOptions: distractors}, nil
}

// SubmitWord grades a vocabulary answer, records it and updates the session tally
func (s *Service) SubmitWord(ctx context.Context, userID string, q *WordQuestion, answer string, score *models.SessionScore) (*AnswerResult, error) {
	res := grading.Grade(answer, q.CorrectAnswer, s.cfg.GradeThreshold)

	if err := s.words.RecordAnswer(ctx, q.Word, userID, res.IsCorrect); err != nil {
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}
	score.Record(res.IsCorrect)

	message := fmt.Sprintf("Incorrect. The correct meaning of '%s' is '%s'.", q.Word, q.CorrectAnswer)
	if res.IsCorrect {
		message = fmt.Sprintf("Correct! The meaning of '%s' is '%s'.", q.Word, q.CorrectAnswer)
	}
	return &AnswerResult{
		Correct:       res.IsCorrect,
		Similarity:    res.Similarity,
		CorrectAnswer: q.CorrectAnswer,
		Message:       message,
		Score:         *score,
	}, nil
}

// NextProblem returns a math problem for userID. Generated problems are
// cached per (category, topic, difficulty) and saved to the sheet; when
// generation fails a stored or sample problem is served instead.
func (s *Service) NextProblem(ctx context.Context, userID string) (*models.MathProblem, error) {
	if err := s.checkLimit(ctx, s.problems, userID, s.cfg.DailyProblemLimit); err != nil {
		return nil, err
	}

	params := randomParams(s.selector.Intn)
	problem, err := s.caches.Problems.GetOrFetch(ctx, params.CacheKey(), func(ctx context.Context) (models.MathProblem, error) {
		return s.generateProblem(ctx, params)
	})
	if err == nil {
		return &problem, nil
	}

	s.log.Warn("Serving stored math problem",
		zap.String("category", params.Category),
		zap.String("topic", params.Topic),
		zap.String("difficulty", params.Difficulty),
		zap.Error(err))
	return s.storedProblem(ctx, userID)
}

func (s *Service) generateProblem(ctx context.Context, params ProblemParams) (models.MathProblem, error) {
	if s.provider == nil {
		return models.MathProblem{}, errProviderDisabled
	}
	p, err := s.provider.GenerateProblem(ctx, params.Category, params.Topic, params.Difficulty)
	if err != nil {
		return models.MathProblem{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.sheet.SaveProblem(*p); err != nil {
		s.log.Error("Failed to save math problem", zap.String("id", p.ID), zap.Error(err))
	}
	return *p, nil
}

// storedProblem picks from the sheet's problems plus the built-in samples,
// preferring ones the user has not mastered
func (s *Service) storedProblem(ctx context.Context, userID string) (*models.MathProblem, error) {
	candidates := append([]models.MathProblem(nil), SampleProblems...)
	if stored, err := s.sheet.LoadProblems(); err != nil {
		s.log.Warn("Failed to load stored problems", zap.Error(err))
	} else {
		candidates = append(stored, candidates...)
	}

	byID := make(map[string]models.MathProblem, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, p := range candidates {
		id := selection.NormalizeID(p.ID)
		if _, dup := byID[id]; dup {
			continue
		}
		byID[id] = p
		ids = append(ids, id)
	}

	exposures, err := s.problems.Exposures(ctx, userID)
	if err != nil {
		s.log.Warn("Failed to load problem exposures", zap.Error(err))
	}
	pool, err := selection.EligiblePool(ids, exposures, s.cfg.MaxExposure)
	if err != nil {
		return nil, err
	}
	id, err := s.selector.PickNext(pool)
	if err != nil {
		return nil, err
	}
	p := byID[id]
	return &p, nil
}

// SubmitProblem grades a math answer, records it and updates the session
// tally. Missed problems get an explanation and are kept for the summary.
func (s *Service) SubmitProblem(ctx context.Context, userID string, p *models.MathProblem, answer string, score *models.SessionScore) (*AnswerResult, error) {
	correctAnswer := p.CorrectAnswer.String()
	res := grading.GradeExact(answer, correctAnswer)

	if err := s.problems.RecordAnswer(ctx, p.ID, userID, res.IsCorrect); err != nil {
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}
	score.Record(res.IsCorrect)

	result := &AnswerResult{
		Correct:       res.IsCorrect,
		Similarity:    res.Similarity,
		CorrectAnswer: correctAnswer,
		Explanation:   p.Explanation,
	}

	if res.IsCorrect {
		result.Message = fmt.Sprintf("Correct! The answer is %s.", correctAnswer)
	} else {
		result.Message = fmt.Sprintf("Incorrect. The correct answer is %s.", correctAnswer)
		if result.Explanation == "" {
			result.Explanation = s.explain(ctx, p.Question, correctAnswer)
		}
		score.Missed = append(score.Missed, models.MissedAnswer{
			Question:      p.Question,
			UserAnswer:    answer,
			CorrectAnswer: correctAnswer,
			Explanation:   result.Explanation,
		})
	}

	result.Score = *score
	return result, nil
}

func (s *Service) explain(ctx context.Context, question, answer string) string {
	key := uuid.NewSHA1(uuid.NameSpaceOID, []byte(question+"\x00"+answer)).String()
	explanation, err := s.caches.Explanations.GetOrFetch(ctx, key, func(ctx context.Context) (string, error) {
		if s.provider == nil {
			return "", errProviderDisabled
		}
		return s.provider.Explain(ctx, question, answer)
	})
	if err != nil {
		s.log.Warn("Serving fallback explanation", zap.Error(err))
		return FallbackExplanation
	}
	return explanation
}

func (s *Service) checkLimit(ctx context.Context, r Recorder, userID string, limit int) error {
	if limit <= 0 {
		return nil
	}
	reached, err := r.DailyLimitReached(ctx, userID, limit)
	if err != nil {
		return fmt.Errorf("failed to check daily limit: %w", err)
	}
	if reached {
		return apperr.ErrDailyLimit
	}
	return nil
}

// Summarize reports the session tally
func Summarize(score *models.SessionScore) Summary {
	return Summary{
		Correct:   score.Correct,
		Incorrect: score.Incorrect,
		Total:     score.Total(),
		Missed:    append([]models.MissedAnswer(nil), score.Missed...),
	}
}

// LoadCaches restores all content caches from their store
func (s *Service) LoadCaches(ctx context.Context) error {
	return errors.Join(
		s.caches.Words.Load(ctx),
		s.caches.Problems.Load(ctx),
		s.caches.Explanations.Load(ctx),
	)
}

// FlushCaches persists pending cache entries
func (s *Service) FlushCaches(ctx context.Context) error {
	return errors.Join(
		s.caches.Words.Flush(ctx),
		s.caches.Problems.Flush(ctx),
		s.caches.Explanations.Flush(ctx),
	)
}
