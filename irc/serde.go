// Copyright (c) 2022 Shivaram Lingamneni
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"fmt"
	"time"

	"github.com/PhiSyX/flex/irc/datastore"
	"github.com/PhiSyX/flex/irc/logger"
)

// Serializable is a record that can be kept in a datastore table.
type Serializable interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}

// storeSerialized persists v under (table, key), without expiration.
func storeSerialized(dstore datastore.Datastore, table datastore.Table, key string, v Serializable) error {
	b, err := v.Serialize()
	if err != nil {
		return fmt.Errorf("serializing %s: %w", key, err)
	}
	return dstore.Set(table, key, b, time.Time{})
}

// loadAllSerialized decodes every record of table. A record that fails to
// decode is logged and skipped; it is left in the datastore as is.
func loadAllSerialized[T any, C interface {
	*T
	Serializable
}](dstore datastore.Datastore, table datastore.Table, log *logger.Manager) (result []T, err error) {
	records, err := dstore.GetAll(table)
	if err != nil {
		return nil, fmt.Errorf("reading table %d: %w", table, err)
	}
	result = make([]T, 0, len(records))
	for _, record := range records {
		var item T
		if derr := C(&item).Deserialize(record.Value); derr != nil {
			log.Error("datastore", "skipping undecodable record", record.Key, derr.Error())
			continue
		}
		result = append(result, item)
	}
	return result, nil
}
