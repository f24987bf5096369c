// Copyright (c) 2020 Shivaram Lingamneni
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/PhiSyX/flex/irc/datastore"
	"github.com/PhiSyX/flex/irc/logger"
)

const (
	// maximum length in bytes of a key (a casefolded channel name)
	MaxKeyLength = 64

	// latest schema of the db
	latestDbSchema   = "1"
	keySchemaVersion = "db.version"

	defaultTimeout = 5 * time.Second
)

// IncompatibleSchemaError is returned when the database was created by a
// different version of the schema.
type IncompatibleSchemaError struct {
	CurrentVersion  string
	RequiredVersion string
}

func (err *IncompatibleSchemaError) Error() string {
	return fmt.Sprintf("Database requires update. Expected schema v%s, got v%s",
		err.RequiredVersion, err.CurrentVersion)
}

// MySQL implements datastore.Datastore on a single key-value table.
type MySQL struct {
	timeout int64
	db      *sql.DB
	logger  *logger.Manager
	config  Config

	selectOne *sql.Stmt
	selectAll *sql.Stmt
	upsert    *sql.Stmt
	remove    *sql.Stmt
}

var _ datastore.Datastore = (*MySQL)(nil)

func (mysql *MySQL) Initialize(logger *logger.Manager, config Config) {
	mysql.logger = logger
	mysql.config = config
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	atomic.StoreInt64(&mysql.timeout, int64(timeout))
}

func (m *MySQL) Open() (err error) {
	m.db, err = sql.Open("mysql", m.config.DSN())
	if err != nil {
		return err
	}

	err = m.fixSchemas()
	if err != nil {
		return err
	}

	return m.prepareStatements()
}

func (mysql *MySQL) fixSchemas() (err error) {
	_, err = mysql.db.Exec(`CREATE TABLE IF NOT EXISTS metadata (
		key_name VARCHAR(32) primary key,
		value VARCHAR(32) NOT NULL
	) CHARSET=ascii COLLATE=ascii_bin;`)
	if err != nil {
		return err
	}

	var schema string
	err = mysql.db.QueryRow(`select value from metadata where key_name = ?;`, keySchemaVersion).Scan(&schema)
	if err == sql.ErrNoRows {
		err = mysql.createTables()
		if err != nil {
			return
		}
		_, err = mysql.db.Exec(`insert into metadata (key_name, value) values (?, ?);`, keySchemaVersion, latestDbSchema)
		return
	} else if err == nil && schema != latestDbSchema {
		return &IncompatibleSchemaError{CurrentVersion: schema, RequiredVersion: latestDbSchema}
	}
	return err
}

func (mysql *MySQL) createTables() (err error) {
	_, err = mysql.db.Exec(fmt.Sprintf(`CREATE TABLE kv (
		tbl SMALLINT UNSIGNED NOT NULL,
		k VARBINARY(%[1]d) NOT NULL,
		v BLOB NOT NULL,
		expires BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (tbl, k)
	) CHARSET=ascii COLLATE=ascii_bin;`, MaxKeyLength))
	return
}

func (mysql *MySQL) prepareStatements() (err error) {
	mysql.selectOne, err = mysql.db.Prepare(`SELECT v FROM kv
		WHERE tbl = ? AND k = ? AND (expires = 0 OR expires > ?);`)
	if err != nil {
		return
	}
	mysql.selectAll, err = mysql.db.Prepare(`SELECT k, v FROM kv
		WHERE tbl = ? AND (expires = 0 OR expires > ?) ORDER BY k;`)
	if err != nil {
		return
	}
	mysql.upsert, err = mysql.db.Prepare(`INSERT INTO kv (tbl, k, v, expires) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE v = VALUES(v), expires = VALUES(expires);`)
	if err != nil {
		return
	}
	mysql.remove, err = mysql.db.Prepare(`DELETE FROM kv WHERE tbl = ? AND k = ?;`)
	return
}

func (mysql *MySQL) getTimeout() time.Duration {
	return time.Duration(atomic.LoadInt64(&mysql.timeout))
}

func (mysql *MySQL) logError(context string, err error) (quit bool) {
	if err != nil {
		mysql.logger.Error("datastore", "mysql", context, err.Error())
		return true
	}
	return false
}

func (mysql *MySQL) Backoff() time.Duration {
	return mysql.getTimeout()
}

func (mysql *MySQL) GetAll(table datastore.Table) (result []datastore.KV, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), mysql.getTimeout())
	defer cancel()

	rows, err := mysql.selectAll.QueryContext(ctx, table, time.Now().UnixNano())
	if mysql.logError("could not select entries", err) {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var kv datastore.KV
		if err = rows.Scan(&kv.Key, &kv.Value); mysql.logError("could not scan entry", err) {
			return nil, err
		}
		result = append(result, kv)
	}
	return result, rows.Err()
}

func (mysql *MySQL) Get(table datastore.Table, key string) (value []byte, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), mysql.getTimeout())
	defer cancel()

	err = mysql.selectOne.QueryRowContext(ctx, table, key, time.Now().UnixNano()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, datastore.ErrNotFound
	}
	mysql.logError("could not select entry", err)
	return
}

func (mysql *MySQL) Set(table datastore.Table, key string, value []byte, expiration time.Time) (err error) {
	if len(key) > MaxKeyLength {
		return fmt.Errorf("key too long: %d bytes", len(key))
	}
	var expires int64
	if !expiration.IsZero() {
		if time.Until(expiration) <= 0 {
			return nil
		}
		expires = expiration.UnixNano()
	}

	ctx, cancel := context.WithTimeout(context.Background(), mysql.getTimeout())
	defer cancel()

	_, err = mysql.upsert.ExecContext(ctx, table, key, value, expires)
	mysql.logError("could not store entry", err)
	return
}

func (mysql *MySQL) Delete(table datastore.Table, key string) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), mysql.getTimeout())
	defer cancel()

	_, err = mysql.remove.ExecContext(ctx, table, key)
	mysql.logError("could not delete entry", err)
	return
}

func (mysql *MySQL) Close() error {
	// closing the database will close our prepared statements as well
	if mysql.db != nil {
		err := mysql.db.Close()
		mysql.db = nil
		return err
	}
	return nil
}
