// Copyright (c) 2022 Shivaram Lingamneni
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package bunt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/PhiSyX/flex/irc/datastore"
	"github.com/PhiSyX/flex/irc/logger"
)

// BuntKey yields a string key corresponding to a (table, key) pair.
func BuntKey(table datastore.Table, key string) string {
	return fmt.Sprintf("%x %s", table, key)
}

// buntdbDatastore implements datastore.Datastore using a buntdb.
type buntdbDatastore struct {
	db     *buntdb.DB
	logger *logger.Manager
}

// NewBuntdbDatastore returns a datastore.Datastore backed by buntdb.
func NewBuntdbDatastore(db *buntdb.DB, logger *logger.Manager) datastore.Datastore {
	return &buntdbDatastore{
		db:     db,
		logger: logger,
	}
}

// Open opens (or creates) the database at path; ":memory:" gives a
// database that is never written to disk.
func Open(path string, logger *logger.Manager) (datastore.Datastore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open datastore %s: %w", path, err)
	}
	return NewBuntdbDatastore(db, logger), nil
}

func (b *buntdbDatastore) Backoff() time.Duration {
	return 0
}

func (b *buntdbDatastore) GetAll(table datastore.Table) (result []datastore.KV, err error) {
	tablePrefix := fmt.Sprintf("%x ", table)
	err = b.db.View(func(tx *buntdb.Tx) error {
		err := tx.AscendGreaterOrEqual("", tablePrefix, func(key, value string) bool {
			encKey, ok := strings.CutPrefix(key, tablePrefix)
			if !ok {
				return false
			}
			if encKey == "" {
				b.logger.Error("datastore", "empty key in table", tablePrefix)
				return true
			}
			result = append(result, datastore.KV{Key: encKey, Value: []byte(value)})
			return true
		})
		return err
	})
	return
}

func (b *buntdbDatastore) Get(table datastore.Table, key string) (value []byte, err error) {
	buntKey := BuntKey(table, key)
	var result string
	err = b.db.View(func(tx *buntdb.Tx) error {
		result, err = tx.Get(buntKey)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, datastore.ErrNotFound
	}
	return []byte(result), err
}

func (b *buntdbDatastore) Set(table datastore.Table, key string, value []byte, expiration time.Time) (err error) {
	buntKey := BuntKey(table, key)
	var setOptions *buntdb.SetOptions
	if !expiration.IsZero() {
		ttl := time.Until(expiration)
		if ttl > 0 {
			setOptions = &buntdb.SetOptions{Expires: true, TTL: ttl}
		} else {
			return nil // it already expired, i guess?
		}
	}
	strVal := string(value)

	err = b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(buntKey, strVal, setOptions)
		return err
	})
	return
}

func (b *buntdbDatastore) Delete(table datastore.Table, key string) (err error) {
	buntKey := BuntKey(table, key)
	err = b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(buntKey)
		return err
	})
	// deleting a nonexistent key is not considered an error
	switch err {
	case buntdb.ErrNotFound:
		return nil
	default:
		return err
	}
}

func (b *buntdbDatastore) Close() error {
	return b.db.Close()
}
