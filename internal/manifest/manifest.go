// Package manifest reads sample card manifests and imports them into the
// store. Re-importing a manifest is safe; existing rows are skipped.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"salience/internal/logging"
	"salience/internal/store"
)

// Entry mirrors one manifest.json record.
type Entry struct {
	DrugName        string `json:"drug_name"`
	DrugNameDisplay string `json:"drug_name_display"`
	CardID          int64  `json:"card_id"`
	Filename        string `json:"filename"`
	Path            string `json:"path"`
	Quantity        *int   `json:"quantity"`
	ImageType       string `json:"image_type"`
}

// Result summarizes an import run.
type Result struct {
	Imported int
	Skipped  int
}

// SampleInserter is the slice of the store the importer needs.
type SampleInserter interface {
	InsertSample(ctx context.Context, sample store.NewSample) (int64, bool, error)
}

var titleCaser = cases.Title(language.English)

// Load parses and normalizes a manifest file. Missing display names are
// derived from the drug name, missing image types default to processed.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	for i := range entries {
		entry := &entries[i]
		if entry.DrugName == "" {
			return nil, fmt.Errorf("manifest entry %d: drug_name is required", i)
		}
		if entry.Filename == "" {
			return nil, fmt.Errorf("manifest entry %d (%s): filename is required", i, entry.DrugName)
		}
		if entry.Path == "" {
			entry.Path = entry.Filename
		}
		if entry.DrugNameDisplay == "" {
			entry.DrugNameDisplay = DisplayName(entry.DrugName)
		}
		if entry.ImageType == "" {
			entry.ImageType = "processed"
		}
	}
	return entries, nil
}

// DisplayName renders a machine drug name for humans: separators become
// spaces and each word is title-cased.
func DisplayName(drugName string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(drugName)
	return titleCaser.String(strings.Join(strings.Fields(cleaned), " "))
}

// Import writes manifest entries into the store and reports how many rows
// were new versus already present.
func Import(ctx context.Context, st SampleInserter, entries []Entry, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "manifest")

	result := &Result{}
	for _, entry := range entries {
		_, created, err := st.InsertSample(ctx, store.NewSample{
			DrugName:        entry.DrugName,
			DrugNameDisplay: entry.DrugNameDisplay,
			CardID:          entry.CardID,
			Filename:        entry.Filename,
			ImagePath:       entry.Path,
			Quantity:        entry.Quantity,
			ImageType:       entry.ImageType,
		})
		if err != nil {
			return nil, fmt.Errorf("import %s card %d: %w", entry.DrugName, entry.CardID, err)
		}
		if created {
			result.Imported++
		} else {
			result.Skipped++
		}
	}
	logger.Info("manifest imported",
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped))
	return result, nil
}

// ImportFile is the Load + Import convenience used by the CLI.
func ImportFile(ctx context.Context, st SampleInserter, path string, logger *slog.Logger) (*Result, error) {
	entries, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Import(ctx, st, entries, logger)
}
