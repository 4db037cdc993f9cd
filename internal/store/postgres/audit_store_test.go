package postgres

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

func TestBuildListQuery(t *testing.T) {
	q, args := buildListQuery(domain.AuditFilter{})
	assert.Equal(t, "SELECT id, event, wallet, detail, created_at FROM audit_log ORDER BY created_at DESC, id DESC", q)
	assert.Empty(t, args)

	since := time.Unix(100, 0)
	q, args = buildListQuery(domain.AuditFilter{Wallet: "0xabc", Since: since, Limit: 10, Offset: 5})
	assert.Contains(t, q, "WHERE wallet = $1 AND created_at >= $2")
	assert.Contains(t, q, "LIMIT $3 OFFSET $4")
	assert.Equal(t, []any{"0xabc", since, 10, 5}, args)

	q, args = buildListQuery(domain.AuditFilter{Event: "order_failed"})
	assert.Contains(t, q, "WHERE event = $1 ORDER BY")
	assert.Equal(t, []any{"order_failed"}, args)
}

func TestMigrationFilesSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_b.sql": {Data: []byte("SELECT 2")},
		"migrations/001_a.sql": {Data: []byte("SELECT 1")},
		"migrations/README":    {Data: []byte("skip")},
	}
	names, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, names)

	names, err = migrationFiles(migrationsFS)
	require.NoError(t, err)
	assert.Contains(t, names, "001_audit_log.sql")
}
