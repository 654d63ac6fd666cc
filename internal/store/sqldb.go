// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	dbDriver   = "mysql"
	dbPoolSize = 10
	dbConnLife = 30 * time.Minute
	dbTimeout  = 30
)

var ErrBadDSN = fmt.Errorf("store connection string is required")

// SQLClient wraps the store connection with pooling and a per-operation
// timeout. The store is MariaDB/MySQL compatible.
type SQLClient struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLClient opens a store connection and verifies it with a ping.
func NewSQLClient(dsn string, timeout int) (*SQLClient, error) {
	if dsn == "" {
		return nil, ErrBadDSN
	}

	db, err := sql.Open(dbDriver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetConnMaxLifetime(dbConnLife)
	db.SetMaxOpenConns(dbPoolSize)
	db.SetMaxIdleConns(dbPoolSize)

	if timeout < 1 {
		timeout = dbTimeout
	}

	sc := &SQLClient{
		db:      db,
		timeout: time.Duration(timeout) * time.Second,
	}

	if err = sc.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sc, nil
}

func (sc *SQLClient) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), sc.timeout)
}

func (sc *SQLClient) Ping() error {
	ctx, cancel := sc.Context()
	defer cancel()
	return sc.db.PingContext(ctx)
}

func (sc *SQLClient) GetDB() *sql.DB {
	return sc.db
}

func (sc *SQLClient) Close() error {
	if sc.db != nil {
		err := sc.db.Close()
		sc.db = nil
		return err
	}
	return nil
}
