//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JonMunkholm/contacts/internal/importer"
	"github.com/JonMunkholm/contacts/internal/store"
)

// startPostgres starts a disposable PostgreSQL and returns a pool on it.
func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "contacts",
			"POSTGRES_PASSWORD": "contacts",
			"POSTGRES_DB":       "contacts",
		},
		// The server restarts once after init, so wait for the second line
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://contacts:contacts@%s:%s/contacts?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx))
	return pool
}

func TestIntegration_SaveImport(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)

	s := store.New(pool)
	require.NoError(t, s.EnsureSchema(ctx))
	// Running it twice must be harmless
	require.NoError(t, s.EnsureSchema(ctx))

	res, err := importer.New().Run(ctx, `"Jane Doe" <jane@example.com>;newsletter;
jane@example.com;promo;Jane D
bob@example.com;;
`)
	require.NoError(t, err)

	saved, err := s.SaveImport(ctx, res.Contacts, res.Tags)
	require.NoError(t, err)
	assert.Equal(t, &store.SaveResult{TagsInserted: 2, ContactsInserted: 2, LinksInserted: 2}, saved)

	again, err := s.SaveImport(ctx, res.Contacts, res.Tags)
	require.NoError(t, err)
	assert.Equal(t, &store.SaveResult{}, again)

	active, err := s.ActiveContacts(ctx, []string{"bob@example.com", "jane@example.com", "nobody@example.com"})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "jane@example.com", active[0].Email)
	require.NotNil(t, active[0].Name)
	assert.Equal(t, "Jane Doe", *active[0].Name)
	assert.Equal(t, []string{"Jane D"}, active[0].AlternateNames)
	assert.Nil(t, active[1].Name)
	assert.Nil(t, active[1].AlternateNames)

	_, err = pool.Exec(ctx, `UPDATE contacts SET active = false WHERE email = $1`, "bob@example.com")
	require.NoError(t, err)

	active, err = s.ActiveContacts(ctx, []string{"bob@example.com", "jane@example.com"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "jane@example.com", active[0].Email)
}

func TestIntegration_SaveImportRollsBack(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)

	s := store.New(pool)
	require.NoError(t, s.EnsureSchema(ctx))

	cctx, cancel := context.WithCancel(ctx)
	cancel()

	_, err := s.SaveImport(cctx, []importer.Contact{{Email: "a@x.com", Tags: []string{"t"}}}, []string{"t"})
	require.Error(t, err)

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM tags`).Scan(&n))
	assert.Zero(t, n)
}
