package exercises

import (
	"strings"
	"time"
)

const (
	defaultDuration = 15
	defaultLanguage = "fr"
	untitled        = "Exercice sans titre"
)

func ParseType(s string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypePractice, TypeQuiz, TypeProblem:
		return t
	}
	return TypePractice
}

func ParseDifficulty(s string) Difficulty {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d
	}
	return DifficultyMedium
}

func validReason(r ReportReason) bool {
	switch r {
	case ReasonInappropriate, ReasonUnsuitable, ReasonIncorrect, ReasonOther:
		return true
	}
	return false
}

func validReportStatus(s ReportStatus) bool {
	switch s {
	case ReportPending, ReportReviewed, ReportResolved:
		return true
	}
	return false
}

// normalize заполняет умолчания у прочитанной или собранной записи.
func normalize(e *Exercise) {
	if e.Status != StatusDraft {
		e.Status = StatusPublished
	}
	e.Type = ParseType(string(e.Type))
	e.Difficulty = ParseDifficulty(string(e.Difficulty))
	if e.Duration <= 0 {
		e.Duration = defaultDuration
	}
	if e.Language == "" {
		e.Language = defaultLanguage
	}
	if strings.TrimSpace(e.Title) == "" {
		e.Title = strings.TrimSpace(e.Description)
	}
	if e.Title == "" {
		e.Title = untitled
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Reports == nil {
		e.Reports = []Report{}
	}
	if e.Metadata.Version < 1 {
		e.Metadata.Version = 1
	}
	if e.Metadata.Likes == nil {
		e.Metadata.Likes = []string{}
	}
	if e.Metadata.Comments == nil {
		e.Metadata.Comments = []Comment{}
	}
	if e.Metadata.LastModified.IsZero() {
		e.Metadata.LastModified = e.CreatedAt
	}
}

// metadataDoc — форма хранения metadata: isPublic может отсутствовать.
type metadataDoc struct {
	LastModified time.Time `json:"lastModified"`
	Version      int       `json:"version"`
	IsPublic     *bool     `json:"isPublic"`
	Likes        []string  `json:"likes"`
	Comments     []Comment `json:"comments"`
}

func (d metadataDoc) toMetadata() Metadata {
	m := Metadata{
		LastModified: d.LastModified,
		Version:      d.Version,
		IsPublic:     true,
		Likes:        d.Likes,
		Comments:     d.Comments,
	}
	if d.IsPublic != nil {
		m.IsPublic = *d.IsPublic
	}
	return m
}

func toDoc(m Metadata) metadataDoc {
	pub := m.IsPublic
	return metadataDoc{
		LastModified: m.LastModified,
		Version:      m.Version,
		IsPublic:     &pub,
		Likes:        m.Likes,
		Comments:     m.Comments,
	}
}

func tagsFor(f Form) []string {
	tags := make([]string, 0, 3+len(f.Tags))
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		tags = append(tags, s)
	}
	add(f.Subject)
	add(f.Level)
	add(string(ParseType(string(f.Type))))
	for _, t := range f.Tags {
		add(t)
	}
	return tags
}
