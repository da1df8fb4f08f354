package exercises

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// год вне 0..9999 time.Time не сериализует в json
var unencodable = time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMemoryStoreInsertReportsCopyError(t *testing.T) {
	m := NewMemoryStore()

	err := m.Insert(context.Background(), Exercise{ID: "e1", Title: "Bad", CreatedAt: unencodable})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "e1")
	assert.Empty(t, m.recs)
}

func TestMemoryStoreReadsPropagateCopyError(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.recs["e1"] = Exercise{ID: "e1", CreatedAt: unencodable, Reports: []Report{{ID: "r1"}}}

	_, err := m.Get(ctx, "e1")
	assert.Error(t, err)

	_, err = m.List(ctx, Filter{}, Page{})
	assert.Error(t, err)

	_, err = m.ListReported(ctx)
	assert.Error(t, err)

	_, err = m.Mutate(ctx, "e1", func(*Exercise) error { return nil })
	assert.Error(t, err)
}
