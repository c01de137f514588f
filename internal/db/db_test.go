package db

import (
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/slowdrip?sslmode=disable", MigrateURL("postgres://u:p@localhost:5432/slowdrip?sslmode=disable"))
	require.Equal(t, "pgx5://db/slowdrip", MigrateURL("postgresql://db/slowdrip"))
	require.Equal(t, "pgx5://already", MigrateURL("pgx5://already"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))

	src, err := iofs.New(migrations, "migrations")
	require.NoError(t, err)
	first, err := src.First()
	require.NoError(t, err)
	require.EqualValues(t, 1, first)
	require.NoError(t, src.Close())
}
