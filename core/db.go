package core

import "context"

// DB is the transaction boundary offered by the persistence layer.
// Writes issued within fn through repositories that honor ctx are committed
// atomically; when fn returns an error the whole set is rolled back.
type DB interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}
