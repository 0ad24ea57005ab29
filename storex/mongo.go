package storex

import (
	"context"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoDatabase is used when the URI names no database.
const DefaultMongoDatabase = "eventcraft"

// TypedMongo stores records of type T in one collection.
type TypedMongo[T any] struct {
	Client     *mongo.Client
	Collection *mongo.Collection
}

func NewTypedMongo[T any](client *mongo.Client, collection *mongo.Collection) *TypedMongo[T] {
	return &TypedMongo[T]{Client: client, Collection: collection}
}

// OpenMongo connects and pings the server. The database is taken from the
// URI path.
func OpenMongo[T any](ctx context.Context, uri, collection string) (*TypedMongo[T], error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrConnectionFailed, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, ErrorRegistry.NewWithCause(ErrConnectionFailed, err)
	}
	coll := client.Database(databaseName(uri)).Collection(collection)
	return NewTypedMongo[T](client, coll), nil
}

func databaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return DefaultMongoDatabase
}

func (m *TypedMongo[T]) Create(ctx context.Context, item T) error {
	if _, err := m.Collection.InsertOne(ctx, item); err != nil {
		return ErrorRegistry.NewWithCause(ErrCreateFailed, err).
			WithDetail("collection", m.Collection.Name())
	}
	return nil
}

func (m *TypedMongo[T]) Paginate(ctx context.Context, opts PaginationOptions) (Paginated[T], error) {
	opts = opts.normalize()

	total, err := m.Collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return Paginated[T]{}, ErrorRegistry.NewWithCause(ErrCountFailed, err).
			WithDetail("collection", m.Collection.Name())
	}

	cursor, err := m.Collection.Find(ctx, bson.M{}, findOptions(opts))
	if err != nil {
		return Paginated[T]{}, ErrorRegistry.NewWithCause(ErrQueryFailed, err).
			WithDetail("collection", m.Collection.Name())
	}
	items := []T{}
	if err := cursor.All(ctx, &items); err != nil {
		return Paginated[T]{}, ErrorRegistry.NewWithCause(ErrQueryFailed, err).
			WithDetail("collection", m.Collection.Name())
	}
	return NewPaginated(items, opts.Page, opts.PageSize, int(total)), nil
}

func findOptions(opts PaginationOptions) *options.FindOptions {
	find := options.Find().
		SetSkip(int64(opts.offset())).
		SetLimit(int64(opts.PageSize))
	switch {
	case opts.OrderBy != "":
		dir := 1
		if opts.Desc {
			dir = -1
		}
		find.SetSort(bson.D{{Key: opts.OrderBy, Value: dir}})
	case opts.Desc:
		find.SetSort(bson.D{{Key: "$natural", Value: -1}})
	}
	return find
}

func (m *TypedMongo[T]) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
