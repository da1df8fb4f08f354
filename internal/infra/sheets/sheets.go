// Package sheets переводит упражнения в xlsx и обратно.
package sheets

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Spok95/iteach/internal/domain/exercises"
	"github.com/xuri/excelize/v2"
)

const (
	colID           = "id"
	colAuthorName   = "authorName"
	colUserID       = "userId"
	colTitle        = "title"
	colDescription  = "description"
	colSubject      = "subject"
	colLevel        = "level"
	colContent      = "content"
	colType         = "type"
	colDifficulty   = "difficulty"
	colDuration     = "duration"
	colLanguage     = "language"
	colStatus       = "status"
	colViews        = "views"
	colIsPublic     = "metadata.isPublic"
	colVersion      = "metadata.version"
	colLastModified = "metadata.lastModified"
	colCreatedAt    = "createdAt"
	colTag0         = "tags.0"
	colTag1         = "tags.1"
	colTag2         = "tags.2"
	colLikes        = "likes"
	colReports      = "reports"
)

// порядок колонок выгрузки; likes и reports при загрузке игнорируются
var header = []string{
	colID, colAuthorName, colUserID, colTitle, colDescription, colSubject, colLevel, colContent,
	colType, colDifficulty, colDuration, colLanguage, colStatus, colViews,
	colIsPublic, colVersion, colLastModified, colCreatedAt, colTag0, colTag1, colTag2,
	colLikes, colReports,
}

var (
	ErrNoRows        = errors.New("sheets: file has no exercise rows")
	ErrInvalidFile   = errors.New("sheets: not a readable xlsx file")
	ErrMissingColumn = errors.New("sheets: missing column")
)

// RowError — строка файла, которую не удалось разобрать (нумерация как в Excel).
type RowError struct {
	Row    int
	Reason string
}

type Result struct {
	Exercises []exercises.Exercise
	Errors    []RowError
}

func Export(list []exercises.Exercise) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, e := range list {
		tags := append(append([]string{}, e.Tags...), "", "", "")
		row := []interface{}{
			e.ID, e.AuthorName, e.UserID, e.Title, e.Description, e.Subject, e.Level, e.Content,
			string(e.Type), string(e.Difficulty), e.Duration, e.Language, string(e.Status), e.Views,
			e.Metadata.IsPublic, e.Metadata.Version,
			e.Metadata.LastModified.UTC().Format(time.RFC3339), e.CreatedAt.UTC().Format(time.RFC3339),
			tags[0], tags[1], tags[2],
			len(e.Metadata.Likes), len(e.Reports),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// Import разбирает первый лист. Колонки ищутся по заголовку; строки без
// content, userId или authorName попадают в Errors и не мешают остальным.
func Import(data []byte) (Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return Result{}, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return Result{}, ErrNoRows
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{colContent, colUserID, colAuthorName} {
		if _, ok := idx[required]; !ok {
			return Result{}, fmt.Errorf("%w %q", ErrMissingColumn, required)
		}
	}

	var res Result
	for i := 1; i < len(rows); i++ {
		get := func(col string) string {
			j, ok := idx[col]
			if !ok || j >= len(rows[i]) {
				return ""
			}
			return strings.TrimSpace(rows[i][j])
		}
		if isBlank(rows[i]) {
			continue
		}
		e, err := parseRow(get)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: i + 1, Reason: err.Error()})
			continue
		}
		res.Exercises = append(res.Exercises, e)
	}
	if len(res.Exercises) == 0 && len(res.Errors) == 0 {
		return Result{}, ErrNoRows
	}
	return res, nil
}

func parseRow(get func(string) string) (exercises.Exercise, error) {
	author := get(colAuthorName)
	if get(colContent) == "" || get(colUserID) == "" || author == "" {
		return exercises.Exercise{}, fmt.Errorf("missing required fields for exercise by %q", author)
	}

	var tags []string
	for _, c := range []string{colTag0, colTag1, colTag2} {
		if t := get(c); t != "" {
			tags = append(tags, t)
		}
	}
	title := get(colTitle)
	if title == "" {
		title = get(colDescription)
	}
	status := exercises.StatusPublished
	if exercises.Status(get(colStatus)) == exercises.StatusDraft {
		status = exercises.StatusDraft
	}

	return exercises.Exercise{
		UserID:      get(colUserID),
		AuthorName:  author,
		Title:       title,
		Description: get(colDescription),
		Subject:     get(colSubject),
		Level:       get(colLevel),
		Content:     get(colContent),
		Type:        exercises.ParseType(get(colType)),
		Difficulty:  exercises.ParseDifficulty(get(colDifficulty)),
		Duration:    atoiOr(get(colDuration), 15),
		Language:    orDefault(get(colLanguage), "fr"),
		Status:      status,
		Tags:        tags,
		Views:       atoiOr(get(colViews), 0),
		Metadata: exercises.Metadata{
			IsPublic:     parseBool(get(colIsPublic), true),
			Version:      atoiOr(get(colVersion), 1),
			LastModified: parseTime(get(colLastModified)),
		},
		CreatedAt: parseTime(get(colCreatedAt)),
	}, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "oui":
		return true
	case "false", "0", "no", "non":
		return false
	}
	return def
}

// parseTime: нераспознанная дата остаётся нулевой, сервис подставит текущую.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
