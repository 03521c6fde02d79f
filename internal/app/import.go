package app

import (
	"context"
	"encoding/json"
	"io"

	"github.com/yogeshchauhan3103-code/prompt-manager/internal/recordstore"
)

// BulkEntry is one record in an uploaded import file. Missing keys are
// treated as empty strings, matching how exported JSON round-trips.
type BulkEntry struct {
	Prompt   string `json:"prompt"`
	Query    string `json:"query"`
	Response string `json:"response"`
}

// ImportReport summarizes a best-effort bulk import.
type ImportReport struct {
	Found    int `json:"found"`
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

// parseBulkEntries decodes an uploaded JSON array. A file that is not a
// JSON array of objects is a parse error; no rows are imported from it.
func parseBulkEntries(r io.Reader) ([]BulkEntry, error) {
	var entries []BulkEntry
	dec := json.NewDecoder(r)
	if err := dec.Decode(&entries); err != nil {
		return nil, parseError("upload must be a JSON array of {prompt, query, response} objects")
	}
	return entries, nil
}

// ImportPrompts inserts the uploaded rows one at a time. A row that fails
// to insert is counted and skipped; the rest still go through.
func (s *Service) ImportPrompts(ctx context.Context, sess Session, r io.Reader) (ImportReport, error) {
	entries, err := parseBulkEntries(r)
	if err != nil {
		return ImportReport{}, err
	}

	report := ImportReport{Found: len(entries)}
	for _, entry := range entries {
		_, err := s.store.Prompts().Insert(ctx, recordstore.Prompt{
			Prompt:    entry.Prompt,
			Query:     entry.Query,
			Response:  entry.Response,
			CreatedBy: sess.Email,
		})
		if err != nil {
			report.Failed++
			continue
		}
		report.Imported++
	}

	if report.Imported > 0 {
		s.reads.Invalidate()
	}
	return report, nil
}
