// Package all registers every storage backend with the storage registry.
package all

import (
	_ "feedbacketl/internal/storage/mssql"
	_ "feedbacketl/internal/storage/postgres"
	_ "feedbacketl/internal/storage/sqlite"
)
