package storex

import (
	"context"
	"slices"
	"sync"
)

// Memory keeps records in insertion order. OrderBy is ignored; Desc returns
// the newest records first.
type Memory[T any] struct {
	mu    sync.RWMutex
	items []T
}

func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{}
}

func (m *Memory[T]) Create(_ context.Context, item T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

func (m *Memory[T]) Paginate(_ context.Context, opts PaginationOptions) (Paginated[T], error) {
	opts = opts.normalize()

	m.mu.RLock()
	items := slices.Clone(m.items)
	m.mu.RUnlock()

	if opts.Desc {
		slices.Reverse(items)
	}
	start := min(opts.offset(), len(items))
	end := min(start+opts.PageSize, len(items))
	return NewPaginated(items[start:end], opts.Page, opts.PageSize, len(items)), nil
}

func (m *Memory[T]) Close(context.Context) error { return nil }
