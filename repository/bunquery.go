package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/hnatiak/photoshare/cachequery"
)

// bunQuery adapts a bun select statement to the cachequery.Query contract.
// The destination slice lives on the adapter so bun hydrates relations into
// the same records the executor caches.
type bunQuery[T any] struct {
	db   *bun.DB
	recs []T
	sq   *bun.SelectQuery
}

// newQuery builds the adapter. The build callback receives the statement
// already bound to the destination model and adds table, filters and
// ordering. Builders must produce deterministic SQL for equal inputs.
func newQuery[T any](db *bun.DB, build func(*bun.SelectQuery) *bun.SelectQuery) *bunQuery[T] {
	q := &bunQuery[T]{db: db}
	q.sq = build(db.NewSelect().Model(&q.recs))
	return q
}

// Identity renders the statement with its bound parameters.
func (q *bunQuery[T]) Identity() (string, error) {
	b, err := q.sq.AppendQuery(q.db.Formatter(), nil)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (q *bunQuery[T]) EagerLoad(relations ...string) cachequery.Query[T] {
	for _, relation := range relations {
		q.sq = q.sq.Relation(relation)
	}
	return q
}

func (q *bunQuery[T]) All(ctx context.Context) ([]T, error) {
	q.recs = nil
	if err := q.sq.Scan(ctx); err != nil {
		return nil, err
	}
	return q.recs, nil
}

func (q *bunQuery[T]) First(ctx context.Context) (*T, error) {
	q.recs = nil
	if err := q.sq.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(q.recs) == 0 {
		return nil, nil
	}
	return &q.recs[0], nil
}

func (q *bunQuery[T]) Scalar(ctx context.Context) (int64, error) {
	n, err := q.sq.Count(ctx)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}
