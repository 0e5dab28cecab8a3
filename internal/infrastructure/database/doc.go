// Package database provides SQLite connectivity for the Eltako bridge.
//
// The bridge keeps a small amount of local state: the discovery table of
// sender addresses heard on the bus that no configured device claims.
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Schema migrations loaded from an fs.FS (see the migrations package)
//   - Connection lifecycle
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive. Each version has an .up.sql and a .down.sql
// file named YYYYMMDD_HHMMSS_description.
package database
