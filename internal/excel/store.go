package excel

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/example/wordquiz/pkg/models"
)

const (
	VocabularySheet = "Vocabulary"
	ProblemsSheet   = "MathProblems"

	timestampLayout = "2006-01-02 15:04:05"
	// PendingDefinition marks seeded words whose definition has not been generated yet
	PendingDefinition = "Definition will be fetched automatically"
)

var (
	vocabularyHeader = []interface{}{"Word", "Definition", "Last Updated"}
	problemsHeader   = []interface{}{"ID", "Question", "Answer", "Category", "Topic", "Difficulty", "Explanation", "Created"}
)

// DefaultWords seeds an empty vocabulary sheet
var DefaultWords = []string{
	"abase", "abate", "abdicate", "aberrant", "abeyance", "abhor", "abject", "abjure",
	"abnegate", "abominate", "aboriginal", "abortive", "abrasive", "abrogate", "abscond",
	"absolution", "abstain", "abstemious", "abstruse", "abundant", "abut", "abysmal",
	"accede", "accessible", "accessory", "acclaimed", "accolade", "accomplish", "accord",
	"accost", "acerbic", "acme", "acquiesce", "acquisitive", "acrimonious", "acumen",
}

// Store keeps the word list and generated math problems in a workbook
type Store struct {
	path  string
	mu    sync.Mutex
	clock clockwork.Clock
	log   *zap.Logger
}

// NewStore creates a store backed by the workbook at path. The file is created on first write.
func NewStore(path string, clock clockwork.Clock, log *zap.Logger) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{path: path, clock: clock, log: log}
}

// open loads the workbook, creating it in memory with both sheets when missing
func (s *Store) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", VocabularySheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create workbook: %w", err)
		}
		if err := f.SetSheetRow(VocabularySheet, "A1", &vocabularyHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	if err := ensureSheet(f, VocabularySheet, vocabularyHeader); err != nil {
		f.Close()
		return nil, err
	}
	if err := ensureSheet(f, ProblemsSheet, problemsHeader); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func ensureSheet(f *excelize.File, sheet string, header []interface{}) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("failed to look up sheet %s: %w", sheet, err)
	}
	if idx != -1 {
		return nil
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	return nil
}

func (s *Store) save(f *excelize.File) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create workbook directory: %w", err)
		}
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (s *Store) now() string {
	return s.clock.Now().Format(timestampLayout)
}

// LoadWords returns the words in the vocabulary sheet. An empty sheet is
// seeded with DefaultWords, which are returned as well.
func (s *Store) LoadWords() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(VocabularySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	var words []string
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if w := strings.TrimSpace(row[0]); w != "" {
			words = append(words, w)
		}
	}
	if len(words) > 0 {
		return words, nil
	}

	s.log.Info("No words found in workbook, adding default vocabulary", zap.Int("count", len(DefaultWords)))
	stamp := s.now()
	for i, w := range DefaultWords {
		row := []interface{}{w, PendingDefinition, stamp}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(VocabularySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to seed default words: %w", err)
		}
	}
	if err := s.save(f); err != nil {
		return nil, err
	}
	return append([]string(nil), DefaultWords...), nil
}

// Definitions returns the stored definition per lowercase word, skipping
// words still waiting for one
func (s *Store) Definitions() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(VocabularySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	defs := make(map[string]string)
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		w, d := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		if w == "" || d == "" || d == PendingDefinition {
			continue
		}
		defs[strings.ToLower(w)] = d
	}
	return defs, nil
}

// SaveWord updates the definition of word (matched case-insensitively) or appends it
func (s *Store) SaveWord(word, definition string) error {
	return s.SaveWords(map[string]string{word: definition})
}

// SaveWords updates or appends several words in one write
func (s *Store) SaveWords(definitions map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(VocabularySheet)
	if err != nil {
		return fmt.Errorf("failed to get rows: %w", err)
	}
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		if i > 0 && len(row) > 0 {
			index[strings.ToLower(strings.TrimSpace(row[0]))] = i + 1
		}
	}
	next := len(rows) + 1
	if next < 2 {
		next = 2
	}

	stamp := s.now()
	written := 0
	for word, definition := range definitions {
		word, definition = strings.TrimSpace(word), strings.TrimSpace(definition)
		if word == "" || definition == "" {
			s.log.Warn("Skipping empty word or definition", zap.String("word", word))
			continue
		}

		rowNum, exists := index[strings.ToLower(word)]
		if !exists {
			rowNum = next
			next++
			index[strings.ToLower(word)] = rowNum
		}
		row := []interface{}{word, definition, stamp}
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(VocabularySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write word %q: %w", word, err)
		}
		written++
	}

	if written == 0 {
		return nil
	}
	return s.save(f)
}

// LoadProblems returns the math problems stored in the workbook
func (s *Store) LoadProblems() ([]models.MathProblem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(ProblemsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	var problems []models.MathProblem
	for i, row := range rows {
		if i == 0 {
			continue
		}
		cell := func(col int) string {
			if col < len(row) {
				return strings.TrimSpace(row[col])
			}
			return ""
		}
		p := models.MathProblem{
			ID:            cell(0),
			Question:      cell(1),
			CorrectAnswer: models.Answer(cell(2)),
			Category:      cell(3),
			Topic:         cell(4),
			Difficulty:    strings.ToLower(cell(5)),
			Explanation:   cell(6),
		}
		if p.ID == "" || p.Question == "" || p.CorrectAnswer == "" {
			s.log.Warn("Skipping incomplete math problem row", zap.Int("row", i+1))
			continue
		}
		if created, err := time.ParseInLocation(timestampLayout, cell(7), time.Local); err == nil {
			p.CreatedAt = created
		}
		problems = append(problems, p)
	}
	return problems, nil
}

// SaveProblem updates the problem with the same ID or appends it
func (s *Store) SaveProblem(p models.MathProblem) error {
	if p.ID == "" {
		return fmt.Errorf("math problem has no ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(ProblemsSheet)
	if err != nil {
		return fmt.Errorf("failed to get rows: %w", err)
	}
	rowNum := len(rows) + 1
	if rowNum < 2 {
		rowNum = 2
	}
	for i, row := range rows {
		if i > 0 && len(row) > 0 && row[0] == p.ID {
			rowNum = i + 1
			break
		}
	}

	created := s.now()
	if !p.CreatedAt.IsZero() {
		created = p.CreatedAt.Format(timestampLayout)
	}
	row := []interface{}{p.ID, p.Question, p.CorrectAnswer.String(), p.Category, p.Topic, p.Difficulty, p.Explanation, created}
	cell, _ := excelize.CoordinatesToCellName(1, rowNum)
	if err := f.SetSheetRow(ProblemsSheet, cell, &row); err != nil {
		return fmt.Errorf("failed to write math problem: %w", err)
	}
	return s.save(f)
}
