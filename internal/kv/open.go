package kv

import (
	"context"
	"fmt"
	"strings"
)

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	Path        string
	DatabaseURL string
	RedisURL    string
	RedisPrefix string
}

func Open(ctx context.Context, opts Options) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverMemory:
		backend = NewMemory()
	case DriverFile:
		var f *File
		f, err = OpenFile(opts.Path)
		backend = f
	case DriverSQLite:
		var db *SQL
		db, err = OpenSQLite(opts.Path)
		backend = db
	case DriverPostgres:
		var db *SQL
		db, err = OpenPostgres(ctx, opts.DatabaseURL)
		backend = db
	case DriverRedis:
		var r *Redis
		r, err = NewRedis(opts.RedisURL, opts.RedisPrefix)
		backend = r
	default:
		return nil, fmt.Errorf("kv: unknown driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}
