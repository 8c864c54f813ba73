// Package all wires all built-in storage backends into the storage factory.
//
// Importing it (even as a blank import) runs each backend's init, which
// registers its factory, making these kinds available to storage.New:
//
//   - "postgres" (fwingest/internal/storage/postgres)
//   - "mssql"    (fwingest/internal/storage/mssql)
//   - "sqlite"   (fwingest/internal/storage/sqlite)
//
// A binary that needs only a subset can import the backend packages
// directly instead.
package all

import (
	_ "fwingest/internal/storage/mssql"
	_ "fwingest/internal/storage/postgres"
	_ "fwingest/internal/storage/sqlite"
)
