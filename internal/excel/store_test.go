package excel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/example/wordquiz/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	return NewStore(filepath.Join(t.TempDir(), "quiz.xlsx"), clock, zaptest.NewLogger(t))
}

func TestLoadWords_SeedsDefaults(t *testing.T) {
	s := newTestStore(t)

	words, err := s.LoadWords()
	require.NoError(t, err)
	assert.Equal(t, DefaultWords, words)

	// the seeded sheet is persisted
	f, err := excelize.OpenFile(s.path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(VocabularySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Word", "Definition", "Last Updated"}, rows[0])
	assert.Equal(t, []string{"abase", PendingDefinition, "2024-05-01 09:30:00"}, rows[1])
	assert.Len(t, rows, len(DefaultWords)+1)

	defs, err := s.Definitions()
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestSaveWord_UpdatesOrAppends(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveWord("Abate", "to lessen"))
	require.NoError(t, s.SaveWord("abhor", "to hate"))
	require.NoError(t, s.SaveWord("ABATE", "to reduce in intensity"))
	require.NoError(t, s.SaveWord("  ", "ignored"))

	words, err := s.LoadWords()
	require.NoError(t, err)
	assert.Equal(t, []string{"ABATE", "abhor"}, words)

	defs, err := s.Definitions()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"abate": "to reduce in intensity", "abhor": "to hate"}, defs)
}

func TestSaveProblem_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2024, 4, 2, 8, 0, 0, 0, time.Local)

	p := models.MathProblem{
		ID:            "p-1",
		Question:      "What is 15 x 10?",
		CorrectAnswer: "150",
		Category:      "Geometry",
		Topic:         "Perimeter and area",
		Difficulty:    models.DifficultyEasy,
		Explanation:   "Multiply length by width.",
		CreatedAt:     created,
	}
	require.NoError(t, s.SaveProblem(p))
	require.NoError(t, s.SaveProblem(models.MathProblem{ID: "p-2", Question: "1+1?", CorrectAnswer: "2", Difficulty: "easy"}))

	p.Explanation = "Area = length x width."
	require.NoError(t, s.SaveProblem(p))

	problems, err := s.LoadProblems()
	require.NoError(t, err)
	require.Len(t, problems, 2)
	assert.True(t, created.Equal(problems[0].CreatedAt))
	got := problems[0]
	got.CreatedAt = p.CreatedAt
	assert.Equal(t, p, got)
	assert.Equal(t, "p-2", problems[1].ID)

	assert.Error(t, s.SaveProblem(models.MathProblem{Question: "no id"}))
}

func TestImportWords_CSV(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "words.csv")
	content := "Word,Definition\n" +
		"Verbs,,\n" +
		"abjure,to renounce solemnly\n" +
		"go (went; gone),to move\n" +
		",orphan definition\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	result, err := s.ImportWords(cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalProcessed)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, result.Errors, 1)

	defs, err := s.Definitions()
	require.NoError(t, err)
	assert.Equal(t, "to renounce solemnly", defs["abjure"])
	assert.Equal(t, "to move", defs["go"])

	words, err := s.LoadWords()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"abjure", "go"}, words)
}

func TestImportWords_Excel(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "list.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Word", "Definition"},
		{"accolade", "an award or privilege"},
		{"acumen", "the ability to make good judgments"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	result, err := s.ImportWords(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	defs, err := s.Definitions()
	require.NoError(t, err)
	assert.Equal(t, "an award or privilege", defs["accolade"])
}

func TestCleanWord(t *testing.T) {
	assert.Equal(t, "go", cleanWord("go (went, gone)"))
	assert.Equal(t, "abate", cleanWord(`  "abate" `))
	assert.Equal(t, "(odd)", cleanWord("(odd)"))
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 1, columnToIndex("b"))
	assert.Equal(t, 26, columnToIndex("AA"))
}
