package exercises

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Spok95/iteach/internal/domain/apperr"
	"github.com/Spok95/iteach/internal/domain/subscriptions"
	"github.com/Spok95/iteach/internal/domain/users"
	"github.com/google/uuid"
)

// Generator пишет текст упражнения по форме.
type Generator interface {
	Generate(ctx context.Context, f Form) (string, error)
}

type Profiles interface {
	Get(ctx context.Context, id string) (*users.Profile, error)
}

type UserCounter interface {
	Counts(ctx context.Context) (users.Counts, error)
}

// Notifier получает новые жалобы (бот модерации).
type Notifier interface {
	ExerciseReported(ctx context.Context, e *Exercise, r Report)
}

type Deps struct {
	Store     Store
	Gate      *subscriptions.Gate
	Profiles  Profiles
	Users     UserCounter
	Generator Generator
	Notifier  Notifier
	Log       *slog.Logger
}

type Service struct {
	store    Store
	gate     *subscriptions.Gate
	profiles Profiles
	users    UserCounter
	gen      Generator
	notify   Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		store:    d.Store,
		gate:     d.Gate,
		profiles: d.Profiles,
		users:    d.Users,
		gen:      d.Generator,
		notify:   d.Notifier,
		log:      d.Log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier подключает уведомления о жалобах после старта бота.
func (s *Service) SetNotifier(n Notifier) { s.notify = n }

// Generate создаёт упражнение через генератор. Квота create списывается
// только после успешной генерации и сохранения; если списание проиграло
// гонку, сохранённое упражнение удаляется.
func (s *Service) Generate(ctx context.Context, actor Actor, f Form) (*Exercise, error) {
	if err := validateForm(f); err != nil {
		return nil, err
	}
	author, err := s.author(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return subscriptions.RunUndo(ctx, s.gate, actor.UserID, subscriptions.ActionCreate, func(ctx context.Context) (*Exercise, error) {
		content, err := s.gen.Generate(ctx, f)
		if err != nil {
			return nil, err
		}
		return s.insert(ctx, actor, author, f, content)
	}, s.discard)
}

// Create — ручное создание с готовым текстом, под той же квотой.
func (s *Service) Create(ctx context.Context, actor Actor, f Form, content string) (*Exercise, error) {
	if err := validateForm(f); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Invalid("content is required")
	}
	author, err := s.author(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return subscriptions.RunUndo(ctx, s.gate, actor.UserID, subscriptions.ActionCreate, func(ctx context.Context) (*Exercise, error) {
		return s.insert(ctx, actor, author, f, content)
	}, s.discard)
}

func (s *Service) insert(ctx context.Context, actor Actor, author string, f Form, content string) (*Exercise, error) {
	now := s.now()
	e := Exercise{
		ID:          uuid.NewString(),
		UserID:      actor.UserID,
		AuthorName:  author,
		Title:       strings.TrimSpace(f.Topic),
		Description: f.Description,
		Subject:     f.Subject,
		Level:       f.Level,
		Content:     content,
		Solution:    f.Solution,
		Type:        f.Type,
		Difficulty:  f.Difficulty,
		Duration:    f.Duration,
		Language:    f.Language,
		Status:      StatusPublished,
		Tags:        tagsFor(f),
		Metadata: Metadata{
			LastModified: now,
			Version:      1,
			IsPublic:     f.IsPublic == nil || *f.IsPublic,
		},
		CreatedAt: now,
	}
	normalize(&e)
	if err := s.store.Insert(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("exercise created", "id", e.ID, "user_id", e.UserID, "type", e.Type)
	return &e, nil
}

// discard удаляет упражнение, за которое не удалось списать квоту.
func (s *Service) discard(ctx context.Context, e *Exercise) error {
	if err := s.store.Delete(ctx, e.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	s.log.Info("unpaid exercise discarded", "id", e.ID, "user_id", e.UserID)
	return nil
}

func (s *Service) author(ctx context.Context, userID string) (string, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", ErrProfileIncomplete
	}
	if err != nil {
		return "", err
	}
	if !p.Complete() {
		return "", ErrProfileIncomplete
	}
	return p.DisplayName(), nil
}

func validateForm(f Form) error {
	if strings.TrimSpace(f.Topic) == "" && strings.TrimSpace(f.Description) == "" {
		return apperr.Invalid("topic or description is required")
	}
	if f.Duration < 0 {
		return apperr.Invalid("duration must be positive")
	}
	return nil
}

// Get отдаёт упражнение под квотой view. Отсутствие записи проверяется до
// квоты; счётчик просмотров растёт после списания.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*Exercise, error) {
	found, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	e, err := subscriptions.Run(ctx, s.gate, actor.UserID, subscriptions.ActionView, func(context.Context) (*Exercise, error) {
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.IncrementViews(ctx, id); err != nil {
		s.log.Warn("increment views failed", "id", id, "err", err)
	} else {
		e.Views++
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, f Filter, p Page) ([]Exercise, error) {
	return s.store.List(ctx, f, p.normalized())
}

func (s *Service) ListByAuthor(ctx context.Context, userID string) ([]Exercise, error) {
	return s.store.List(ctx, Filter{AuthorID: userID}, Page{})
}

func (s *Service) Update(ctx context.Context, actor Actor, id string, p Patch) (*Exercise, error) {
	return s.store.Mutate(ctx, id, func(e *Exercise) error {
		if !actor.canModify(e) {
			return apperr.ErrUnauthorized
		}
		applyPatch(e, p)
		e.Metadata.Version++
		e.Metadata.LastModified = s.now()
		return nil
	})
}

func applyPatch(e *Exercise, p Patch) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&e.Title, p.Title)
	set(&e.Description, p.Description)
	set(&e.Subject, p.Subject)
	set(&e.Level, p.Level)
	set(&e.Content, p.Content)
	set(&e.Solution, p.Solution)
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Difficulty != nil {
		e.Difficulty = *p.Difficulty
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Tags != nil {
		e.Tags = p.Tags
	}
	if p.IsPublic != nil {
		e.Metadata.IsPublic = *p.IsPublic
	}
}

func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.canModify(e) {
		return apperr.ErrUnauthorized
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("exercise deleted", "id", id, "by", actor.UserID, "admin", actor.IsAdmin)
	return nil
}

// ToggleLike: повторный вызов снимает лайк.
func (s *Service) ToggleLike(ctx context.Context, actor Actor, id string) ([]string, error) {
	e, err := s.store.Mutate(ctx, id, func(e *Exercise) error {
		if i := slices.Index(e.Metadata.Likes, actor.UserID); i >= 0 {
			e.Metadata.Likes = slices.Delete(e.Metadata.Likes, i, i+1)
		} else {
			e.Metadata.Likes = append(e.Metadata.Likes, actor.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.Metadata.Likes, nil
}

func (s *Service) AddComment(ctx context.Context, actor Actor, id, content string) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("empty comment")
	}
	author, err := s.author(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	c := Comment{
		ID:         uuid.NewString(),
		UserID:     actor.UserID,
		ExerciseID: id,
		AuthorName: author,
		Content:    content,
		CreatedAt:  now,
	}
	if _, err := s.store.Mutate(ctx, id, func(e *Exercise) error {
		e.Metadata.Comments = append(e.Metadata.Comments, c)
		e.Metadata.LastModified = now
		return nil
	}); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) EditComment(ctx context.Context, actor Actor, id, commentID, content string) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("empty comment")
	}
	var edited Comment
	_, err := s.store.Mutate(ctx, id, func(e *Exercise) error {
		i, err := ownComment(e, actor, commentID)
		if err != nil {
			return err
		}
		now := s.now()
		e.Metadata.Comments[i].Content = content
		e.Metadata.Comments[i].EditedAt = &now
		e.Metadata.LastModified = now
		edited = e.Metadata.Comments[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &edited, nil
}

func (s *Service) DeleteComment(ctx context.Context, actor Actor, id, commentID string) error {
	_, err := s.store.Mutate(ctx, id, func(e *Exercise) error {
		i, err := ownComment(e, actor, commentID)
		if err != nil {
			return err
		}
		e.Metadata.Comments = slices.Delete(e.Metadata.Comments, i, i+1)
		e.Metadata.LastModified = s.now()
		return nil
	})
	return err
}

// ownComment ищет комментарий; править и удалять может только автор.
func ownComment(e *Exercise, actor Actor, commentID string) (int, error) {
	i := slices.IndexFunc(e.Metadata.Comments, func(c Comment) bool { return c.ID == commentID })
	if i < 0 {
		return -1, apperr.ErrNotFound
	}
	if e.Metadata.Comments[i].UserID != actor.UserID {
		return -1, apperr.ErrUnauthorized
	}
	return i, nil
}

// Report добавляет жалобу. Повторные жалобы одного пользователя не схлопываются.
func (s *Service) Report(ctx context.Context, actor Actor, id string, reason ReportReason, details string) (*Report, error) {
	if !validReason(reason) {
		return nil, apperr.Invalid("unknown report reason %q", reason)
	}
	r := Report{
		ID:        uuid.NewString(),
		UserID:    actor.UserID,
		Reason:    reason,
		Details:   strings.TrimSpace(details),
		CreatedAt: s.now(),
		Status:    ReportPending,
	}
	e, err := s.store.Mutate(ctx, id, func(e *Exercise) error {
		e.Reports = append(e.Reports, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("exercise reported", "id", id, "reason", reason, "by", actor.UserID)
	if s.notify != nil {
		s.notify.ExerciseReported(ctx, e, r)
	}
	return &r, nil
}

func (s *Service) SetReportStatus(ctx context.Context, actor Actor, id, reportID string, status ReportStatus) (*Report, error) {
	if !actor.IsAdmin {
		return nil, apperr.ErrUnauthorized
	}
	if !validReportStatus(status) {
		return nil, apperr.Invalid("unknown report status %q", status)
	}
	var out Report
	_, err := s.store.Mutate(ctx, id, func(e *Exercise) error {
		i := slices.IndexFunc(e.Reports, func(r Report) bool { return r.ID == reportID })
		if i < 0 {
			return apperr.ErrNotFound
		}
		e.Reports[i].Status = status
		out = e.Reports[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	list, err := s.ListByAuthor(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{TotalExercises: len(list), Trending: []Exercise{}}
	for _, e := range list {
		st.TotalDuration += e.Duration
		st.TotalLikes += len(e.Metadata.Likes)
		st.TotalViews += e.Views
		st.TotalComments += len(e.Metadata.Comments)
	}
	if n := float64(len(list)); n > 0 {
		st.AvgLikes = float64(st.TotalLikes) / n
		st.AvgViews = float64(st.TotalViews) / n
		st.AvgComments = float64(st.TotalComments) / n
	}
	sort.SliceStable(list, func(i, j int) bool {
		return len(list[i].Metadata.Likes) > len(list[j].Metadata.Likes)
	})
	st.Trending = append(st.Trending, list[:min(3, len(list))]...)
	return st, nil
}

func (s *Service) ListReported(ctx context.Context, actor Actor) ([]Exercise, error) {
	if !actor.IsAdmin {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.ListReported(ctx)
}

func (s *Service) DeleteByAuthors(ctx context.Context, actor Actor, names []string) (int, error) {
	if !actor.IsAdmin {
		return 0, apperr.ErrUnauthorized
	}
	clean := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			clean = append(clean, n)
		}
	}
	if len(clean) == 0 {
		return 0, apperr.Invalid("no author names")
	}
	n, err := s.store.DeleteByAuthors(ctx, clean)
	if err != nil {
		return 0, err
	}
	s.log.Info("exercises deleted by authors", "authors", clean, "count", n)
	return n, nil
}

func (s *Service) GlobalStats(ctx context.Context, actor Actor) (GlobalStats, error) {
	if !actor.IsAdmin {
		return GlobalStats{}, apperr.ErrUnauthorized
	}
	total, reported, err := s.store.Counts(ctx)
	if err != nil {
		return GlobalStats{}, err
	}
	gs := GlobalStats{TotalExercises: total, TotalReported: reported}
	if s.users != nil {
		c, err := s.users.Counts(ctx)
		if err != nil {
			return GlobalStats{}, err
		}
		gs.TotalUsers, gs.TotalTeachers, gs.TotalStudents = c.Users, c.Teachers, c.Students
	}
	return gs, nil
}

// Import сохраняет уже разобранные строки выгрузки; id выдаются заново.
func (s *Service) Import(ctx context.Context, actor Actor, rows []Exercise) (int, error) {
	if !actor.IsAdmin {
		return 0, apperr.ErrUnauthorized
	}
	now := s.now()
	batch := make([]Exercise, 0, len(rows))
	for _, e := range rows {
		e.ID = uuid.NewString()
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.Metadata.LastModified.IsZero() {
			e.Metadata.LastModified = now
		}
		// лайки и комментарии при импорте не переносятся
		e.Metadata.Likes, e.Metadata.Comments, e.Reports = nil, nil, nil
		normalize(&e)
		batch = append(batch, e)
	}
	n, err := s.store.InsertMany(ctx, batch)
	if err != nil {
		return 0, err
	}
	s.log.Info("exercises imported", "count", n, "by", actor.UserID)
	return n, nil
}

// Export — все упражнения, новые первыми.
func (s *Service) Export(ctx context.Context, actor Actor) ([]Exercise, error) {
	if !actor.IsAdmin {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.List(ctx, Filter{}, Page{})
}
