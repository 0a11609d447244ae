package main

import (
	"github.com/medassist/vha/internal/config"
	"github.com/medassist/vha/internal/db"
	"github.com/medassist/vha/internal/session"
)

// openStore builds the configured session store and a cleanup func.
func openStore(cfg config.StoreConfig) (session.Store, func(), error) {
	if cfg.Driver == config.DriverSQLite {
		storeDB, err := db.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return session.NewSQLiteStore(storeDB), func() { _ = storeDB.Close() }, nil
	}
	return session.NewMemoryStore(), func() {}, nil
}
