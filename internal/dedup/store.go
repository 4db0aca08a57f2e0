package dedup

//go:generate mockgen -source=store.go -destination=../../testutils/mocks/dedup/mock_store.go -package=dedupmocks

import (
	"context"
	"errors"
)

var (
	// ErrStoreRejected is returned when the store answers but refuses a write.
	ErrStoreRejected = errors.New("dedup store rejected document")
	// ErrStoreDisabled is returned by DisabledStore writes.
	ErrStoreDisabled = errors.New("dedup store disabled")
)

// Document is what gets recorded for an emitted item.
type Document struct {
	ID       string            `json:"document_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Store is the external record of already-ingested item ids.
type Store interface {
	Exists(ctx context.Context, id string) (bool, error)
	Store(ctx context.Context, doc Document) error
	// Clear removes every record and returns how many were deleted.
	Clear(ctx context.Context) (int, error)
}

// DisabledStore remembers nothing.
type DisabledStore struct{}

func (DisabledStore) Exists(context.Context, string) (bool, error) { return false, nil }
func (DisabledStore) Store(context.Context, Document) error        { return ErrStoreDisabled }
func (DisabledStore) Clear(context.Context) (int, error)           { return 0, nil }
