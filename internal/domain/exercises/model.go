package exercises

import (
	"errors"
	"time"
)

type Type string

const (
	TypePractice Type = "practice"
	TypeQuiz     Type = "quiz"
	TypeProblem  Type = "problem"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

type ReportReason string

const (
	ReasonInappropriate ReportReason = "inappropriate"
	ReasonUnsuitable    ReportReason = "unsuitable"
	ReasonIncorrect     ReportReason = "incorrect"
	ReasonOther         ReportReason = "other"
)

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportReviewed ReportStatus = "reviewed"
	ReportResolved ReportStatus = "resolved"
)

var ErrProfileIncomplete = errors.New("exercises: user profile incomplete")

type Comment struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	ExerciseID string     `json:"exerciseId"`
	AuthorName string     `json:"authorName"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
	EditedAt   *time.Time `json:"editedAt,omitempty"`
}

type Metadata struct {
	LastModified time.Time `json:"lastModified"`
	Version      int       `json:"version"`
	IsPublic     bool      `json:"isPublic"`
	Likes        []string  `json:"likes"`
	Comments     []Comment `json:"comments"`
}

type Report struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Reason    ReportReason `json:"reason"`
	Details   string       `json:"details"`
	CreatedAt time.Time    `json:"createdAt"`
	Status    ReportStatus `json:"status"`
}

type Exercise struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	AuthorName  string     `json:"authorName"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Subject     string     `json:"subject"`
	Level       string     `json:"level"`
	Content     string     `json:"content"`
	Solution    string     `json:"solution,omitempty"`
	Type        Type       `json:"type"`
	Difficulty  Difficulty `json:"difficulty"`
	Duration    int        `json:"duration"`
	Language    string     `json:"language"`
	Status      Status     `json:"status"`
	Tags        []string   `json:"tags"`
	Views       int        `json:"views"`
	Metadata    Metadata   `json:"metadata"`
	Reports     []Report   `json:"reports"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Form — параметры генерации или ручного создания.
type Form struct {
	Topic       string     `json:"topic"`
	Description string     `json:"description"`
	Subject     string     `json:"subject"`
	Level       string     `json:"level"`
	Type        Type       `json:"type"`
	Difficulty  Difficulty `json:"difficulty"`
	Duration    int        `json:"duration"`
	Language    string     `json:"language"`
	Tags        []string   `json:"tags"`
	Interests   []string   `json:"interests"`
	IsPublic    *bool      `json:"isPublic"`
	Solution    string     `json:"solution"`
}

// Patch — частичное обновление; nil-поля не трогаются.
type Patch struct {
	Title       *string     `json:"title"`
	Description *string     `json:"description"`
	Subject     *string     `json:"subject"`
	Level       *string     `json:"level"`
	Content     *string     `json:"content"`
	Solution    *string     `json:"solution"`
	Type        *Type       `json:"type"`
	Difficulty  *Difficulty `json:"difficulty"`
	Duration    *int        `json:"duration"`
	Status      *Status     `json:"status"`
	Tags        []string    `json:"tags"`
	IsPublic    *bool       `json:"isPublic"`
}

type Filter struct {
	Subject    string
	Level      string
	Type       Type
	Difficulty Difficulty
	AuthorID   string
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Actor — аутентифицированный пользователь запроса.
type Actor struct {
	UserID  string
	IsAdmin bool
}

func (a Actor) canModify(e *Exercise) bool {
	return a.IsAdmin || (a.UserID != "" && a.UserID == e.UserID)
}

type Stats struct {
	TotalExercises int        `json:"totalExercises"`
	TotalDuration  int        `json:"totalDuration"`
	TotalLikes     int        `json:"totalLikes"`
	TotalViews     int        `json:"totalViews"`
	TotalComments  int        `json:"totalComments"`
	AvgLikes       float64    `json:"avgLikes"`
	AvgViews       float64    `json:"avgViews"`
	AvgComments    float64    `json:"avgComments"`
	Trending       []Exercise `json:"trendingExercises"`
}

type GlobalStats struct {
	TotalExercises int `json:"totalExercises"`
	TotalReported  int `json:"totalReported"`
	TotalUsers     int `json:"totalUsers"`
	TotalTeachers  int `json:"totalTeachers"`
	TotalStudents  int `json:"totalStudents"`
}
