package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Tarcizioo/portal-animes-V2-sub001/usersync"
)

// Collection is a per-user subcollection users/{uid}/{name}. It implements
// usersync.Source.
type Collection[T any] struct {
	fs      *firestore.Client
	name    string
	orderBy string
	dir     firestore.Direction
	setID   func(*T, string)
}

var _ usersync.Source[struct{}] = (*Collection[struct{}])(nil)

// CollectionOption configures a Collection
type CollectionOption[T any] func(*Collection[T])

// WithOrder orders snapshots by field
func WithOrder[T any](field string, dir firestore.Direction) CollectionOption[T] {
	return func(c *Collection[T]) {
		c.orderBy = field
		c.dir = dir
	}
}

// WithDocID sets the document id on decoded values whose id is not a stored field
func WithDocID[T any](fn func(*T, string)) CollectionOption[T] {
	return func(c *Collection[T]) {
		c.setID = fn
	}
}

// NewCollection creates a Collection
func NewCollection[T any](fs *firestore.Client, name string, opts ...CollectionOption[T]) *Collection[T] {
	c := &Collection[T]{fs: fs, name: name}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collection[T]) ref(uid string) *firestore.CollectionRef {
	return userDoc(c.fs, uid).Collection(c.name)
}

// Subscribe implements usersync.Source
func (c *Collection[T]) Subscribe(ctx context.Context, uid string, onSnapshot func([]T)) error {
	q := c.ref(uid).Query
	if c.orderBy != "" {
		q = q.OrderBy(c.orderBy, c.dir)
	}

	it := q.Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return ctx.Err()
			}
			return fmt.Errorf("listen %s/%s: %w", uid, c.name, err)
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			return fmt.Errorf("read %s/%s snapshot: %w", uid, c.name, err)
		}
		items, err := decodeAll(docs, c.setID)
		if err != nil {
			return fmt.Errorf("decode %s/%s: %w", uid, c.name, err)
		}
		onSnapshot(items)
	}
}

// Put implements usersync.Source
func (c *Collection[T]) Put(ctx context.Context, uid, id string, v T) error {
	_, err := c.ref(uid).Doc(id).Set(ctx, v)
	return translate(err, "put "+c.name+"/"+id)
}

// Patch implements usersync.Source. A missing document is reported as
// ErrNotFound rather than created.
func (c *Collection[T]) Patch(ctx context.Context, uid, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := c.ref(uid).Doc(id).Update(ctx, toUpdates(fields))
	return translate(err, "patch "+c.name+"/"+id)
}

// Remove implements usersync.Source
func (c *Collection[T]) Remove(ctx context.Context, uid, id string) error {
	_, err := c.ref(uid).Doc(id).Delete(ctx)
	return translate(err, "remove "+c.name+"/"+id)
}

// List reads the collection once
func (c *Collection[T]) List(ctx context.Context, uid string) ([]T, error) {
	q := c.ref(uid).Query
	if c.orderBy != "" {
		q = q.OrderBy(c.orderBy, c.dir)
	}
	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", uid, c.name, err)
	}
	return decodeAll(docs, c.setID)
}

func decodeAll[T any](docs []*firestore.DocumentSnapshot, setID func(*T, string)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.Ref.ID, err)
		}
		if setID != nil {
			setID(&v, doc.Ref.ID)
		}
		out = append(out, v)
	}
	return out, nil
}

func toUpdates(fields map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return updates
}

// IsNotFound reports whether err is a not-found error from this package or
// from Firestore directly
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || status.Code(err) == codes.NotFound
}
