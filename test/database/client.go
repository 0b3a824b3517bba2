// Package database provides shared test database setup.
package database

import (
	"testing"

	"github.com/doculord/doculord/pkg/database"
	"github.com/doculord/doculord/test/util"
)

// NewTestClient creates a migrated test database client.
// In CI (when CI_DATABASE_URL is set): connects to the external PostgreSQL
// service container. In local dev: spins up a pgvector testcontainer shared
// by the package's tests. Each test gets its own schema, dropped on cleanup.
func NewTestClient(t *testing.T) *database.Client {
	return util.SetupTestDatabase(t)
}
