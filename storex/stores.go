// Package storex keeps typed records in memory, PostgreSQL or MongoDB behind
// one small repository interface.
//
//	repo, err := storex.Open[benchx.Record](ctx, "postgres://localhost/bench", "bench_runs")
//	defer repo.Close(ctx)
//
// Record types describe their columns with `db` tags and their documents with
// `bson` tags.
package storex

import (
	"context"
	"net/url"
	"strings"
)

// Page represents pagination metadata
type Page struct {
	Number int `json:"page"`      // Current page number (1-based)
	Size   int `json:"page_size"` // Number of records per page
	Total  int `json:"total"`     // Total number of records
	Pages  int `json:"pages"`     // Total number of pages
}

// Paginated is a generic container for paginated data with metadata
type Paginated[T any] struct {
	Data  []T  `json:"data"`
	Page  Page `json:"pagination"`
	Empty bool `json:"empty"`
}

// NewPaginated creates a new paginated result with calculated fields
func NewPaginated[T any](data []T, page, size, total int) Paginated[T] {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return Paginated[T]{
		Data: data,
		Page: Page{
			Number: page,
			Size:   size,
			Total:  total,
			Pages:  pages,
		},
		Empty: len(data) == 0,
	}
}

// HasNext returns whether there are more pages after the current one
func (p Paginated[T]) HasNext() bool {
	return p.Page.Number < p.Page.Pages
}

// HasPrevious returns whether there are pages before the current one
func (p Paginated[T]) HasPrevious() bool {
	return p.Page.Number > 1
}

// PaginationOptions holds options for pagination queries
type PaginationOptions struct {
	Page     int    // Page number (1-based)
	PageSize int    // Number of records per page
	OrderBy  string // Column or document field; insertion order when empty
	Desc     bool
}

// DefaultPaginationOptions returns the first page of 25 records.
func DefaultPaginationOptions() PaginationOptions {
	return PaginationOptions{
		Page:     1,
		PageSize: 25,
	}
}

func (o PaginationOptions) normalize() PaginationOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPaginationOptions().PageSize
	}
	return o
}

func (o PaginationOptions) offset() int {
	return (o.Page - 1) * o.PageSize
}

// Repository stores records of one type.
type Repository[T any] interface {
	Create(ctx context.Context, item T) error
	Paginate(ctx context.Context, opts PaginationOptions) (Paginated[T], error)
	Close(ctx context.Context) error
}

// Open connects to the store named by rawURL. The scheme picks the backend:
// mem:// for an in-process store, postgres:// or postgresql:// for SQL and
// mongodb:// or mongodb+srv:// for MongoDB. name is the table or collection.
func Open[T any](ctx context.Context, rawURL, name string) (Repository[T], error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrUnsupportedURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mem", "memory":
		return NewMemory[T](), nil
	case "postgres", "postgresql":
		repo, err := OpenSQL[T](ctx, rawURL, name)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "mongodb", "mongodb+srv":
		repo, err := OpenMongo[T](ctx, rawURL, name)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, ErrorRegistry.New(ErrUnsupportedURL).WithDetail("scheme", u.Scheme)
	}
}
