// Package export serializes a prompt set to downloadable artifacts:
// structured JSON, a flat CSV table, and a styled spreadsheet where rows
// are highlighted by the viewer's own rating. The viewer-identifying
// rating column is never part of any exported artifact.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Row is one exportable prompt with the viewer's rating attached for
// spreadsheet highlighting only.
type Row struct {
	Prompt   string
	Query    string
	Response string
	Rating   string // "up", "down" or ""
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

const (
	fillUp   = "C6EFCE"
	fillDown = "FFC7CE"
)

// ParseFormat maps a request parameter to a Format. An empty value means
// JSON.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown export format %q", raw)
	}
}

// Filename builds the timestamped artifact name, prompts_YYYYMMDD_HHMMSS.<ext>.
func Filename(format Format, now time.Time) string {
	return fmt.Sprintf("prompts_%s.%s", now.Format("20060102_150405"), format)
}

// Encode produces one artifact for the given rows.
func Encode(format Format, rows []Row, now time.Time) (*Result, error) {
	switch format {
	case FormatJSON:
		data, err := encodeJSON(rows)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Filename: Filename(format, now), MimeType: "application/json"}, nil
	case FormatCSV:
		data, err := encodeCSV(rows)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Filename: Filename(format, now), MimeType: "text/csv"}, nil
	case FormatXLSX:
		data, err := encodeXLSX(rows)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: Filename(format, now),
			MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

type jsonRow struct {
	Prompt   string `json:"prompt"`
	Query    string `json:"query"`
	Response string `json:"response"`
}

func encodeJSON(rows []Row) ([]byte, error) {
	out := make([]jsonRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, jsonRow{Prompt: row.Prompt, Query: row.Query, Response: row.Response})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json export: %w", err)
	}
	return data, nil
}

func encodeCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"prompt", "query", "response"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.Prompt, row.Query, row.Response}); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeXLSX(rows []Row) ([]byte, error) {
	file := excelize.NewFile()
	const sheet = "prompts"

	index, err := file.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	header := []any{"prompt", "query", "response"}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	upStyle, err := file.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillUp}},
	})
	if err != nil {
		return nil, fmt.Errorf("build up style: %w", err)
	}
	downStyle, err := file.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillDown}},
	})
	if err != nil {
		return nil, fmt.Errorf("build down style: %w", err)
	}

	for i, row := range rows {
		rowNumber := i + 2
		cell := fmt.Sprintf("A%d", rowNumber)
		values := []any{row.Prompt, row.Query, row.Response}
		if err := file.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", rowNumber, err)
		}

		style := 0
		switch row.Rating {
		case "up":
			style = upStyle
		case "down":
			style = downStyle
		default:
			continue
		}
		last := fmt.Sprintf("C%d", rowNumber)
		if err := file.SetCellStyle(sheet, cell, last, style); err != nil {
			return nil, fmt.Errorf("style row %d: %w", rowNumber, err)
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
