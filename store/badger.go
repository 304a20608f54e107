package store

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/hupe1980/speakerid/codec"
)

var badgerKeyPrefix = []byte("vp/")

// BadgerStore is a durable Store implementation backed by BadgerDB v4.
//
// Each voiceprint is written under key "vp/<username>" in a single
// update transaction, so readers never observe a half-written record.
type BadgerStore struct {
	db    *badger.DB
	codec codec.Codec
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	// Useful for testing with a real badger engine.
	InMemory bool

	// Codec serializes voiceprint records. Defaults to codec.Default.
	Codec codec.Codec

	// Logger sets the badger logger. If nil, badger output is silenced.
	Logger badger.Logger
}

// NewBadgerStore opens (or creates) a BadgerDB-backed voiceprint store.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: BadgerOptions.Dir is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(nil)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}

	c := opts.Codec
	if c == nil {
		c = codec.Default
	}
	return &BadgerStore{db: db, codec: c}, nil
}

// Close closes the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func badgerKey(username string) []byte {
	return append(append([]byte{}, badgerKeyPrefix...), username...)
}

// Put inserts or replaces the voiceprint for vp.Username.
func (b *BadgerStore) Put(_ context.Context, vp Voiceprint) error {
	data, err := b.codec.Marshal(vp)
	if err != nil {
		return fmt.Errorf("store: encode voiceprint: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(vp.Username), data)
	})
}

// Get returns the voiceprint for a username, or ErrNotFound.
func (b *BadgerStore) Get(_ context.Context, username string) (Voiceprint, error) {
	var vp Voiceprint
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return b.codec.Unmarshal(val, &vp)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Voiceprint{}, ErrNotFound
	}
	if err != nil {
		return Voiceprint{}, err
	}
	return vp, nil
}

// List returns metadata for every enrolled user.
func (b *BadgerStore) List(ctx context.Context) ([]UserInfo, error) {
	vps, err := b.All(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]UserInfo, 0, len(vps))
	for _, vp := range vps {
		infos = append(infos, UserInfo{
			Username:   vp.Username,
			EnrolledAt: vp.EnrolledAt,
			ClipCount:  vp.ClipCount,
		})
	}
	return infos, nil
}

// All returns every voiceprint from a single read transaction.
func (b *BadgerStore) All(_ context.Context) ([]Voiceprint, error) {
	var vps []Voiceprint

	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = badgerKeyPrefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(badgerKeyPrefix); it.ValidForPrefix(badgerKeyPrefix); it.Next() {
			var vp Voiceprint
			err := it.Item().Value(func(val []byte) error {
				return b.codec.Unmarshal(val, &vp)
			})
			if err != nil {
				return err
			}
			vps = append(vps, vp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vps, nil
}

// Delete removes the voiceprint for a username, or ErrNotFound.
func (b *BadgerStore) Delete(_ context.Context, username string) error {
	key := badgerKey(username)
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

// Len returns the number of enrolled users.
func (b *BadgerStore) Len(_ context.Context) (int, error) {
	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = badgerKeyPrefix
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(badgerKeyPrefix); it.ValidForPrefix(badgerKeyPrefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
