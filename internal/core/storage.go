package core

import (
	"fmt"
	"os"

	"opsledger/internal/infra/persistence/memory"
	"opsledger/internal/infra/persistence/postgres"
	"opsledger/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset. Memory stores start from the seed state;
// durable stores load their persisted document first.
//
//	OPSLEDGER_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	OPSLEDGER_SQLITE_PATH: path to sqlite file (default ./opsledger.db)
//	OPSLEDGER_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine, log Logger) (PersistentStore, error) {
	if log == nil {
		log = noopLogger{}
	}
	driver := os.Getenv("OPSLEDGER_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewSeededStore(engine), nil
	case StorageSQLite:
		path := os.Getenv("OPSLEDGER_SQLITE_PATH")
		return sqlite.NewStore(path, engine, sqlite.WithLogf(log.Warnf))
	case StoragePostgres:
		dsn := os.Getenv("OPSLEDGER_POSTGRES_DSN")
		return postgres.NewStore(dsn, engine, postgres.WithLogf(log.Warnf))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
