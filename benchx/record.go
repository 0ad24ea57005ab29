package benchx

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Abraxas-365/eventcraft/asyncx"
	"github.com/Abraxas-365/eventcraft/storex"
)

// RecordsName is the table or collection holding recorded runs.
const RecordsName = "bench_runs"

// Record is a stored Result.
type Record struct {
	ID         string    `json:"id" db:"id" bson:"_id" fmtx:"-"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at" bson:"recorded_at" fmtx:"recorded"`
	Mode       string    `json:"mode" db:"mode" bson:"mode" fmtx:"mode"`
	Invoker    string    `json:"invoker" db:"invoker" bson:"invoker" fmtx:"invoker"`
	Times      int       `json:"times" db:"times" bson:"times" fmtx:"dispatches"`
	Workers    int       `json:"workers" db:"workers" bson:"workers" fmtx:"workers"`
	Cancelled  bool      `json:"cancelled" db:"cancelled" bson:"cancelled" fmtx:"cancelled"`
	TookNanos  int64     `json:"took_ns" db:"took_ns" bson:"took_ns" fmtx:"-"`
}

// Took returns the recorded duration.
func (r Record) Took() time.Duration { return time.Duration(r.TookNanos) }

// Records converts the results of one invocation.
func (b *Bench) Records(results []Result, at time.Time) []Record {
	records := make([]Record, len(results))
	for i, r := range results {
		records[i] = Record{
			ID:         uuid.NewString(),
			RecordedAt: at.UTC(),
			Mode:       r.Mode,
			Invoker:    r.Invoker,
			Times:      r.Times,
			Workers:    r.Workers,
			Cancelled:  b.opts.Cancelled,
			TookNanos:  int64(r.Took),
		}
	}
	return records
}

// Save stores records concurrently.
func Save(ctx context.Context, repo storex.Repository[Record], records []Record) error {
	return asyncx.ForEach(ctx, records, 4, func(ctx context.Context, r Record) error {
		return repo.Create(ctx, r)
	})
}
