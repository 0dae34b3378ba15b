// Package all registers every built-in storage backend. Import it for side
// effects from binaries that should support the full set of destinations.
package all

import (
	_ "tripingest/internal/storage/mysql"
	_ "tripingest/internal/storage/postgres"
	_ "tripingest/internal/storage/sqlite"
)
