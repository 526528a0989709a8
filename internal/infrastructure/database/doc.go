// Package database provides the SQLite connection and schema migrations.
//
// The only table owned by homesec is the command audit log; occupancy is
// never persisted. Migrations are plain SQL files embedded by the
// top-level migrations package and applied with Migrate:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Use database.MemoryPath (":memory:") for tests.
package database
