// Package dataset loads the raw anime CSV and derives the combined text
// used for indexing.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"animerec/internal/domain"
)

// Required source columns. The synopsis column is spelled "sypnopsis" in
// the upstream dataset; the standard spelling is accepted as well.
const (
	colName     = "name"
	colGenres   = "genres"
	colSynopsis = "sypnopsis"
	colSynAlt   = "synopsis"
)

// Load reads the dataset CSV at path and returns one RawItem per data row.
// Header matching is case-insensitive. A required column missing from the
// header entirely is a structural failure and returns domain.ErrSchema;
// rows with empty values are returned as-is and dropped later by Normalize.
func Load(path string) ([]domain.RawItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset %s has no header row: %w", path, domain.ErrSchema)
	}

	nameIdx, genresIdx, synIdx := -1, -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case colName:
			nameIdx = i
		case colGenres:
			genresIdx = i
		case colSynopsis, colSynAlt:
			synIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("missing required column %q: %w", colName, domain.ErrSchema)
	}
	if genresIdx < 0 {
		return nil, fmt.Errorf("missing required column %q: %w", colGenres, domain.ErrSchema)
	}
	if synIdx < 0 {
		return nil, fmt.Errorf("missing required column %q: %w", colSynopsis, domain.ErrSchema)
	}

	items := make([]domain.RawItem, 0, len(rows)-1)
	for _, row := range rows[1:] {
		items = append(items, domain.RawItem{
			Name:     field(row, nameIdx),
			Genres:   field(row, genresIdx),
			Synopsis: field(row, synIdx),
		})
	}
	return items, nil
}

// Normalize derives one CombinedRecord per valid raw item. Items with any
// empty field are dropped, not errors. The combined text layout is fixed:
// retrieval quality and reproducibility depend on it staying stable.
func Normalize(items []domain.RawItem) []domain.CombinedRecord {
	records := make([]domain.CombinedRecord, 0, len(items))
	for _, it := range items {
		if it.Name == "" || it.Genres == "" || it.Synopsis == "" {
			continue
		}
		records = append(records, domain.CombinedRecord{
			Name:         it.Name,
			CombinedInfo: CombinedInfo(it),
		})
	}
	return records
}

// CombinedInfo formats a raw item into the canonical combined text:
// "{Name}. Overview: {Synopsis} Genres: {Genres}".
func CombinedInfo(it domain.RawItem) string {
	return fmt.Sprintf("%s. Overview: %s Genres: %s", it.Name, it.Synopsis, it.Genres)
}

// WriteCombined persists the reduced single-column dataset artifact for
// reuse and inspection.
func WriteCombined(path string, records []domain.CombinedRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create combined dataset %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"combined_info"}); err != nil {
		f.Close()
		return err
	}
	for _, rec := range records {
		if err := w.Write([]string{rec.CombinedInfo}); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func field(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
