package exercises

import "context"

// Store — хранилище упражнений. Mutate выполняет fn над актуальной версией
// записи и сохраняет результат атомарно; ошибка fn отменяет запись.
type Store interface {
	Insert(ctx context.Context, e Exercise) error
	InsertMany(ctx context.Context, es []Exercise) (int, error)
	Get(ctx context.Context, id string) (*Exercise, error)
	// List: Limit <= 0 — без ограничения.
	List(ctx context.Context, f Filter, p Page) ([]Exercise, error)
	ListReported(ctx context.Context) ([]Exercise, error)
	Mutate(ctx context.Context, id string, fn func(*Exercise) error) (*Exercise, error)
	Delete(ctx context.Context, id string) error
	DeleteByAuthors(ctx context.Context, names []string) (int, error)
	IncrementViews(ctx context.Context, id string) error
	Counts(ctx context.Context) (total, reported int, err error)
}
