package storex

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/eventcraft/errx"
)

type run struct {
	ID         string    `db:"id" bson:"_id"`
	RecordedAt time.Time `db:"recorded_at" bson:"recorded_at"`
	Times      int       `db:"times" bson:"times"`
	Cancelled  bool      `db:"cancelled" bson:"cancelled"`
	Note       string
}

func TestNewPaginated(t *testing.T) {
	tests := []struct {
		name              string
		page, size, total int
		pages             int
		next, prev        bool
	}{
		{"first of three", 1, 10, 25, 3, true, false},
		{"middle", 2, 10, 25, 3, true, true},
		{"last", 3, 10, 25, 3, false, true},
		{"empty", 1, 10, 0, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaginated([]int{}, tt.page, tt.size, tt.total)
			assert.Equal(t, tt.pages, p.Page.Pages)
			assert.Equal(t, tt.next, p.HasNext())
			assert.Equal(t, tt.prev, p.HasPrevious())
			assert.True(t, p.Empty)
		})
	}
}

func TestMemory_Paginate(t *testing.T) {
	ctx := context.Background()
	repo, err := Open[int](ctx, "mem://", "numbers")
	require.NoError(t, err)
	defer repo.Close(ctx)

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.Create(ctx, i))
	}

	page, err := repo.Paginate(ctx, PaginationOptions{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, page.Data)
	assert.Equal(t, Page{Number: 2, Size: 2, Total: 5, Pages: 3}, page.Page)

	page, err = repo.Paginate(ctx, PaginationOptions{PageSize: 2, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4}, page.Data)

	page, err = repo.Paginate(ctx, PaginationOptions{Page: 9})
	require.NoError(t, err)
	assert.True(t, page.Empty)
	assert.Equal(t, 25, page.Page.Size)
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	_, err := Open[int](context.Background(), "redis://localhost", "x")
	assert.True(t, errx.IsCode(err, ErrUnsupportedURL))
}

func TestColumnsOf(t *testing.T) {
	cols, err := columnsOf(reflect.TypeFor[run]())
	require.NoError(t, err)
	assert.Equal(t, []column{
		{Name: "id", Type: "TEXT"},
		{Name: "recorded_at", Type: "TIMESTAMPTZ"},
		{Name: "times", Type: "BIGINT"},
		{Name: "cancelled", Type: "BOOLEAN"},
	}, cols)

	_, err = columnsOf(reflect.TypeFor[int]())
	assert.Error(t, err)

	type untagged struct{ A string }
	_, err = columnsOf(reflect.TypeFor[untagged]())
	assert.Error(t, err)

	type badField struct {
		Tags []string `db:"tags"`
	}
	_, err = columnsOf(reflect.TypeFor[badField]())
	assert.Error(t, err)
}

func TestQueries(t *testing.T) {
	cols := []column{{Name: "id", Type: "TEXT"}, {Name: "times", Type: "BIGINT"}}

	assert.Equal(t, "CREATE TABLE IF NOT EXISTS runs (id TEXT, times BIGINT)", createTableQuery("runs", cols))
	assert.Equal(t, "INSERT INTO runs (id, times) VALUES (:id, :times)", insertQuery("runs", cols))

	q, err := pageQuery("runs", cols, PaginationOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, times FROM runs LIMIT $1 OFFSET $2", q)

	q, err = pageQuery("runs", cols, PaginationOptions{OrderBy: "times", Desc: true})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, times FROM runs ORDER BY times DESC LIMIT $1 OFFSET $2", q)

	_, err = pageQuery("runs", cols, PaginationOptions{OrderBy: "times; DROP TABLE runs"})
	assert.True(t, IsInvalidQuery(err))
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "bench", databaseName("mongodb://localhost:27017/bench"))
	assert.Equal(t, DefaultMongoDatabase, databaseName("mongodb://localhost:27017"))
	assert.Equal(t, DefaultMongoDatabase, databaseName("mongodb://localhost:27017/"))
}

func TestFindOptions(t *testing.T) {
	find := findOptions(PaginationOptions{Page: 3, PageSize: 10, OrderBy: "times", Desc: true}.normalize())
	assert.Equal(t, int64(20), *find.Skip)
	assert.Equal(t, int64(10), *find.Limit)
	assert.NotNil(t, find.Sort)

	assert.Nil(t, findOptions(DefaultPaginationOptions()).Sort)
}

// Backends run against real servers only when their URL is set.
func TestBackends(t *testing.T) {
	urls := map[string]string{
		"postgres": os.Getenv("STOREX_TEST_POSTGRES_URL"),
		"mongo":    os.Getenv("STOREX_TEST_MONGO_URL"),
	}

	for name, url := range urls {
		t.Run(name, func(t *testing.T) {
			if url == "" {
				t.Skipf("%s url not set", name)
			}
			ctx := context.Background()
			table := "runs_" + uuid.NewString()[:8]

			repo, err := Open[run](ctx, url, table)
			require.NoError(t, err)
			defer repo.Close(ctx)

			now := time.Now().UTC().Truncate(time.Millisecond)
			for i := range 3 {
				require.NoError(t, repo.Create(ctx, run{
					ID:         uuid.NewString(),
					RecordedAt: now.Add(time.Duration(i) * time.Second),
					Times:      i,
				}))
			}

			page, err := repo.Paginate(ctx, PaginationOptions{PageSize: 2, OrderBy: "times", Desc: true})
			require.NoError(t, err)
			assert.Equal(t, 3, page.Page.Total)
			require.Len(t, page.Data, 2)
			assert.Equal(t, 2, page.Data[0].Times)
			assert.True(t, page.Data[0].RecordedAt.Equal(now.Add(2*time.Second)))
		})
	}
}
