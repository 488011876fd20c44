package library

import (
	"context"

	jsoniter "github.com/json-iterator/go"

	liberrors "lms/internal/errors"
	"lms/internal/models"
	"lms/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// snapshot is a candidate next state. Slices that a mutation touches are
// replaced with modified copies, the rest alias the current state.
type snapshot struct {
	books   []models.Book
	members []models.Member
	loans   []models.LoanRecord
}

func (l *Library) current() snapshot {
	return snapshot{books: l.books, members: l.members, loans: l.loans}
}

func (l *Library) load(ctx context.Context) error {
	books, err := loadCollection[models.Book](ctx, l.store, storage.KeyBooks)
	if err != nil {
		return err
	}
	members, err := loadCollection[models.Member](ctx, l.store, storage.KeyMembers)
	if err != nil {
		return err
	}
	loans, err := loadCollection[models.LoanRecord](ctx, l.store, storage.KeyLoans)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.books, l.members, l.loans = books, members, loans
	return nil
}

func loadCollection[T any](ctx context.Context, s storage.Storage, key string) ([]T, error) {
	blob, err := s.Load(ctx, key)
	if err != nil {
		return nil, liberrors.Persistence("load "+key, err)
	}
	if len(blob) == 0 {
		return nil, nil
	}

	var items []T
	if err := json.Unmarshal(blob, &items); err != nil {
		return nil, liberrors.Persistence("decode "+key, err)
	}
	return items, nil
}

func encodeCollection[T any](key string, items []T) (storage.Record, error) {
	if items == nil {
		items = []T{}
	}
	blob, err := json.Marshal(items)
	if err != nil {
		return storage.Record{}, liberrors.Persistence("encode "+key, err)
	}
	return storage.Record{Key: key, Blob: blob}, nil
}

// commit persists the collections named by keys and, only if that succeeds,
// makes next the current state. Callers must hold the write lock.
func (l *Library) commit(ctx context.Context, next snapshot, keys ...string) error {
	records := make([]storage.Record, 0, len(keys))
	for _, key := range keys {
		var (
			rec storage.Record
			err error
		)
		switch key {
		case storage.KeyBooks:
			rec, err = encodeCollection(key, next.books)
		case storage.KeyMembers:
			rec, err = encodeCollection(key, next.members)
		case storage.KeyLoans:
			rec, err = encodeCollection(key, next.loans)
		}
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	if err := l.store.Save(ctx, records...); err != nil {
		return liberrors.Persistence("save snapshot", err)
	}

	l.books, l.members, l.loans = next.books, next.members, next.loans
	return nil
}
