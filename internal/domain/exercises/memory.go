package exercises

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Spok95/iteach/internal/domain/apperr"
)

// MemoryStore — Store в памяти, записи хранятся копиями.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Exercise
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Exercise)}
}

// clone — глубокая копия через json, чтобы вызывающий не делил срезы с хранилищем.
func clone(e Exercise) (Exercise, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return Exercise{}, fmt.Errorf("clone exercise %s: %w", e.ID, err)
	}
	var out Exercise
	if err := json.Unmarshal(raw, &out); err != nil {
		return Exercise{}, fmt.Errorf("clone exercise %s: %w", e.ID, err)
	}
	normalize(&out)
	return out, nil
}

func (m *MemoryStore) Insert(_ context.Context, e Exercise) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	normalize(&e)
	c, err := clone(e)
	if err != nil {
		return err
	}
	m.recs[e.ID] = c
	return nil
}

func (m *MemoryStore) InsertMany(ctx context.Context, es []Exercise) (int, error) {
	for _, e := range es {
		if err := m.Insert(ctx, e); err != nil {
			return 0, err
		}
	}
	return len(es), nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Exercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.recs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	c, err := clone(e)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *MemoryStore) List(_ context.Context, f Filter, p Page) ([]Exercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Exercise{}
	for _, e := range m.recs {
		if f.Subject != "" && e.Subject != f.Subject ||
			f.Level != "" && e.Level != f.Level ||
			f.Type != "" && e.Type != f.Type ||
			f.Difficulty != "" && e.Difficulty != f.Difficulty ||
			f.AuthorID != "" && e.UserID != f.AuthorID {
			continue
		}
		c, err := clone(e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if p.Limit <= 0 {
		return out, nil
	}
	if p.Offset >= len(out) {
		return []Exercise{}, nil
	}
	out = out[p.Offset:]
	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ListReported(ctx context.Context) ([]Exercise, error) {
	all, err := m.List(ctx, Filter{}, Page{})
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(e Exercise) bool { return len(e.Reports) == 0 }), nil
}

func (m *MemoryStore) Mutate(_ context.Context, id string, fn func(*Exercise) error) (*Exercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.recs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	e, err := clone(cur)
	if err != nil {
		return nil, err
	}
	if err := fn(&e); err != nil {
		return nil, err
	}
	normalize(&e)
	stored, err := clone(e)
	if err != nil {
		return nil, err
	}
	m.recs[id] = stored
	return &e, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.recs, id)
	return nil
}

func (m *MemoryStore) DeleteByAuthors(_ context.Context, names []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.recs {
		if slices.Contains(names, e.AuthorName) {
			delete(m.recs, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) IncrementViews(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.recs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	e.Views++
	m.recs[id] = e
	return nil
}

func (m *MemoryStore) Counts(_ context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reported := 0
	for _, e := range m.recs {
		if len(e.Reports) > 0 {
			reported++
		}
	}
	return len(m.recs), reported, nil
}
