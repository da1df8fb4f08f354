package sheets

import (
	"bytes"
	"testing"
	"time"

	"github.com/Spok95/iteach/internal/domain/exercises"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildFile(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))
	return buf.Bytes()
}

func TestImportNormalizesRows(t *testing.T) {
	data := buildFile(t, [][]interface{}{
		{"authorName", "content", "title", "description", "difficulty", "duration", "type", "userId", "tags.0", "tags.2", "metadata.isPublic", "createdAt"},
		{"Marie Curie", "Énoncé", "", "Radioactivité", " HARD ", "abc", "Quiz", "u1", "physique", "lycée", "non", "2024-05-01"},
		{"", "Énoncé", "Titre", "", "", "", "", "u2", "", "", "", ""},
		{"", "", "", "", "", "", "", "", "", "", "", ""},
		{"Louis", "Contenu", "Vaccins", "", "weird", "30", "lab", "u3", "", "", "", ""},
	})

	res, err := Import(data)
	require.NoError(t, err)
	require.Len(t, res.Exercises, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Row)

	first := res.Exercises[0]
	assert.Equal(t, "Radioactivité", first.Title)
	assert.Equal(t, exercises.DifficultyHard, first.Difficulty)
	assert.Equal(t, exercises.TypeQuiz, first.Type)
	assert.Equal(t, 15, first.Duration)
	assert.Equal(t, "fr", first.Language)
	assert.Equal(t, exercises.StatusPublished, first.Status)
	assert.Equal(t, []string{"physique", "lycée"}, first.Tags)
	assert.False(t, first.Metadata.IsPublic)
	assert.Equal(t, 1, first.Metadata.Version)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), first.CreatedAt)

	second := res.Exercises[1]
	assert.Equal(t, exercises.DifficultyMedium, second.Difficulty)
	assert.Equal(t, exercises.TypePractice, second.Type)
	assert.Equal(t, 30, second.Duration)
	assert.True(t, second.Metadata.IsPublic)
	assert.True(t, second.CreatedAt.IsZero())
}

func TestImportRejectsMissingColumns(t *testing.T) {
	data := buildFile(t, [][]interface{}{{"title"}, {"x"}})
	_, err := Import(data)
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = Import(buildFile(t, [][]interface{}{{"authorName", "content", "userId"}}))
	assert.ErrorIs(t, err, ErrNoRows)

	_, err = Import([]byte("not a zip"))
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	created := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	data, err := Export([]exercises.Exercise{{
		ID: "e1", UserID: "u1", AuthorName: "Marie Curie", Title: "Atomes", Content: "...",
		Type: exercises.TypeProblem, Difficulty: exercises.DifficultyEasy, Duration: 25,
		Language: "fr", Status: exercises.StatusDraft, Tags: []string{"physique"},
		Metadata:  exercises.Metadata{Version: 3, IsPublic: true, LastModified: created, Likes: []string{"a", "b"}},
		CreatedAt: created,
	}})
	require.NoError(t, err)

	res, err := Import(data)
	require.NoError(t, err)
	require.Len(t, res.Exercises, 1)
	e := res.Exercises[0]
	assert.Equal(t, "Atomes", e.Title)
	assert.Equal(t, exercises.TypeProblem, e.Type)
	assert.Equal(t, exercises.StatusDraft, e.Status)
	assert.Equal(t, 25, e.Duration)
	assert.Equal(t, 3, e.Metadata.Version)
	assert.Equal(t, created, e.CreatedAt)
	assert.Equal(t, []string{"physique"}, e.Tags)
}
