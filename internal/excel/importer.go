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

// ImportConfig defines the alias import configuration
type ImportConfig struct {
	FilePath    string // Path to the Excel or CSV file
	SheetName   string // Name of the sheet to import
	AliasColumn int    // Zero-based column with the localized alias
	TitleColumn int    // Zero-based column with the canonical title
	SkipHeader  bool   // Skip the header row
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig(path string) ImportConfig {
	return ImportConfig{
		FilePath:    path,
		SheetName:   "Sheet1",
		AliasColumn: 0,
		TitleColumn: 1,
		SkipHeader:  true,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Imported       int
	Skipped        int
	Errors         []string
}

// ImportAliases loads a localized-title alias sheet into a map of
// normalized alias to canonical catalog query.
func ImportAliases(config ImportConfig) (map[string]string, *ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		return importFromCSV(config)
	}
	return importFromExcel(config)
}

func importFromExcel(config ImportConfig) (map[string]string, *ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %q: %w", config.SheetName, err)
	}

	return collect(rows, config)
}

func importFromCSV(config ImportConfig) (map[string]string, *ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV file: %w", err)
		}
		rows = append(rows, record)
	}

	return collect(rows, config)
}

func collect(rows [][]string, config ImportConfig) (map[string]string, *ImportResult, error) {
	aliases := make(map[string]string)
	result := &ImportResult{Errors: make([]string, 0)}

	for i, row := range rows {
		if i == 0 && config.SkipHeader {
			continue
		}
		result.TotalProcessed++

		if len(row) <= config.TitleColumn {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: too few columns", i+1))
			continue
		}

		alias := strings.ToLower(strings.TrimSpace(row[config.AliasColumn]))
		title := strings.TrimSpace(row[config.TitleColumn])
		if alias == "" || title == "" {
			result.Skipped++
			continue
		}

		aliases[alias] = title
		result.Imported++
	}

	return aliases, result, nil
}

// DefaultAliases returns the built-in alias map used when no alias file is
// configured: popular Russian titles mapped to their original names.
func DefaultAliases() map[string]string {
	return map[string]string{
		"острые козырьки":   "peaky blinders",
		"голяк":             "brassic",
		"йеллоустоун":       "yellowstone",
		"во все тяжкие":     "breaking bad",
		"бумажный дом":      "la casa de papel",
		"игра престолов":    "game of thrones",
		"мир дикого запада": "westworld",
		"ходячие мертвецы":  "the walking dead",
		"ведьмак":           "the witcher",
		"клан сопрано":      "the sopranos",
	}
}
