package storex

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// column is one `db`-tagged field of a record type.
type column struct {
	Name string
	Type string
}

// TypedSQL stores records of type T in one PostgreSQL table.
type TypedSQL[T any] struct {
	DB        *sqlx.DB
	TableName string
	columns   []column
}

// NewTypedSQL wraps an open connection. T must be a struct with `db` tags.
func NewTypedSQL[T any](db *sqlx.DB, table string) (*TypedSQL[T], error) {
	cols, err := columnsOf(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	if table == "" {
		return nil, ErrorRegistry.New(ErrInvalidQuery).WithDetail("reason", "table name not set")
	}
	return &TypedSQL[T]{DB: db, TableName: table, columns: cols}, nil
}

// OpenSQL connects with lib/pq and creates the table if it is missing.
func OpenSQL[T any](ctx context.Context, dsn, table string) (*TypedSQL[T], error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrConnectionFailed, err)
	}
	s, err := NewTypedSQL[T](db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createTableQuery(table, s.columns)); err != nil {
		db.Close()
		return nil, ErrorRegistry.NewWithCause(ErrQueryFailed, err).WithDetail("table", table)
	}
	return s, nil
}

func (s *TypedSQL[T]) Create(ctx context.Context, item T) error {
	if _, err := s.DB.NamedExecContext(ctx, insertQuery(s.TableName, s.columns), item); err != nil {
		return ErrorRegistry.NewWithCause(ErrCreateFailed, err).WithDetail("table", s.TableName)
	}
	return nil
}

func (s *TypedSQL[T]) Paginate(ctx context.Context, opts PaginationOptions) (Paginated[T], error) {
	opts = opts.normalize()
	query, err := pageQuery(s.TableName, s.columns, opts)
	if err != nil {
		return Paginated[T]{}, err
	}

	var total int
	if err := s.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM "+s.TableName); err != nil {
		return Paginated[T]{}, ErrorRegistry.NewWithCause(ErrCountFailed, err).WithDetail("table", s.TableName)
	}

	items := []T{}
	if err := s.DB.SelectContext(ctx, &items, query, opts.PageSize, opts.offset()); err != nil {
		return Paginated[T]{}, ErrorRegistry.NewWithCause(ErrQueryFailed, err).WithDetail("table", s.TableName)
	}
	return NewPaginated(items, opts.Page, opts.PageSize, total), nil
}

func (s *TypedSQL[T]) Close(context.Context) error {
	return s.DB.Close()
}

var timeType = reflect.TypeFor[time.Time]()

// columnsOf maps the `db`-tagged fields of t to PostgreSQL column types.
func columnsOf(t reflect.Type) ([]column, error) {
	if t.Kind() != reflect.Struct {
		return nil, ErrorRegistry.New(ErrInvalidRecord).WithDetail("type", t.String())
	}

	var cols []column
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("db"), ",")
		if name == "" || name == "-" || !f.IsExported() {
			continue
		}
		typ, ok := sqlType(f.Type)
		if !ok {
			return nil, ErrorRegistry.New(ErrInvalidRecord).
				WithDetail("field", f.Name).
				WithDetail("type", f.Type.String())
		}
		cols = append(cols, column{Name: name, Type: typ})
	}
	if len(cols) == 0 {
		return nil, ErrorRegistry.New(ErrInvalidRecord).
			WithDetail("type", t.String()).
			WithDetail("reason", "no db tags")
	}
	return cols, nil
}

func sqlType(t reflect.Type) (string, bool) {
	if t == timeType {
		return "TIMESTAMPTZ", true
	}
	switch t.Kind() {
	case reflect.String:
		return "TEXT", true
	case reflect.Bool:
		return "BOOLEAN", true
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		return "BIGINT", true
	case reflect.Float64, reflect.Float32:
		return "DOUBLE PRECISION", true
	}
	return "", false
}

func createTableQuery(table string, cols []column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c.Name + " " + c.Type
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
}

func insertQuery(table string, cols []column) string {
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		params[i] = ":" + c.Name
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(params, ", "))
}

// pageQuery selects one page; $1 is the limit and $2 the offset. OrderBy
// must name a known column.
func pageQuery(table string, cols []column, opts PaginationOptions) (string, error) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), table)
	if opts.OrderBy != "" {
		if !slices.Contains(names, opts.OrderBy) {
			return "", ErrorRegistry.New(ErrInvalidQuery).
				WithDetail("order_by", opts.OrderBy).
				WithDetail("table", table)
		}
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", opts.OrderBy, dir)
	}
	return query + " LIMIT $1 OFFSET $2", nil
}
