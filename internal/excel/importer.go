package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath         string // Path to the Excel or CSV file
	WordColumn       string // Column with the word
	DefinitionColumn string // Column with the definition
	SheetName        string // Name of the sheet to import (Excel only)
	StartRow         int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		WordColumn:       "A",
		DefinitionColumn: "B",
		SheetName:        "Sheet1",
		StartRow:         2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Imported       int
	Skipped        int
	Errors         []string
}

// ImportWords merges a word list from an Excel or CSV file into the vocabulary sheet
func (s *Store) ImportWords(config ImportConfig) (*ImportResult, error) {
	var (
		entries map[string]string
		result  *ImportResult
		err     error
	)

	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		entries, result, err = readCSV(config)
	} else {
		entries, result, err = readExcel(config)
	}
	if err != nil {
		return nil, err
	}

	if err := s.SaveWords(entries); err != nil {
		return nil, err
	}
	result.Imported = len(entries)
	return result, nil
}

// readExcel reads word/definition pairs from a worksheet
func readExcel(config ImportConfig) (map[string]string, *ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get rows: %w", err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	entries := make(map[string]string)
	wordIdx := columnToIndex(config.WordColumn)
	defIdx := columnToIndex(config.DefinitionColumn)

	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		result.TotalProcessed++

		var word, definition string
		if wordIdx < len(row) {
			word = cleanWord(row[wordIdx])
		}
		if defIdx < len(row) {
			definition = strings.TrimSpace(row[defIdx])
		}
		if err := addEntry(entries, word, definition); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
		}
	}
	return entries, result, nil
}

// readCSV reads word/definition pairs from a CSV file. Rows with only a first
// column are topic headers and are skipped.
func readCSV(config ImportConfig) (map[string]string, *ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	result := &ImportResult{Errors: make([]string, 0)}
	entries := make(map[string]string)
	wordIdx := columnToIndex(config.WordColumn)
	defIdx := columnToIndex(config.DefinitionColumn)

	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("error reading CSV: %w", err)
		}

		rowNum++
		if rowNum < config.StartRow {
			continue
		}

		// topic header such as "Adjectives,,"
		if len(row) >= 2 && strings.TrimSpace(row[0]) != "" && strings.TrimSpace(strings.Join(row[1:], "")) == "" {
			continue
		}

		result.TotalProcessed++

		var word, definition string
		if wordIdx < len(row) {
			word = cleanWord(row[wordIdx])
		}
		if defIdx < len(row) {
			definition = strings.TrimSpace(row[defIdx])
		}
		if err := addEntry(entries, word, definition); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
	}
	return entries, result, nil
}

func addEntry(entries map[string]string, word, definition string) error {
	if word == "" {
		return fmt.Errorf("word cannot be empty")
	}
	if definition == "" {
		definition = PendingDefinition
	}
	entries[word] = definition
	return nil
}

// cleanWord drops extra information in parentheses, e.g. "go (went, gone)"
func cleanWord(word string) string {
	word = strings.Trim(strings.TrimSpace(word), "\"")
	if idx := strings.Index(word, "("); idx > 0 {
		return strings.TrimSpace(word[:idx])
	}
	return strings.TrimSpace(word)
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
