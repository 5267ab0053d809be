package database

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/angas/awattar-go/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "awattar.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

var priceObj = types.StateObject{
	Name: "Preis pro KWh (excl. MwSt.)",
	Type: types.StateTypeNumber,
	Role: "value",
	Unit: "Cent / KWh",
	Read: true,
}

func TestMigrate(t *testing.T) {
	db := newTestDatabase(t)

	v, err := db.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Running the migrations again is a no-op
	require.NoError(t, db.migrate(context.Background()))
}

func TestMigrateBacksUpExistingDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := New(ctx, filepath.Join(dir, "awattar.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.SetObjectNotExists(ctx, "Rawdata", priceObj))

	initSQL, err := fs.ReadFile(migrationsDir, "migrations/001_init.sql")
	require.NoError(t, err)
	migrations := fstest.MapFS{
		"001_init.sql":  {Data: initSQL},
		"002_notes.sql": {Data: []byte(`CREATE TABLE note (id INTEGER PRIMARY KEY, text TEXT NOT NULL);`)},
		"README.md":     {Data: []byte("not a migration")},
	}

	require.NoError(t, db.migrateFrom(ctx, migrations))

	v, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "an existing database is backed up before migrating")
	assert.Regexp(t, `^\d{8}_\d{6}_awattar\.db\.zip$`, entries[0].Name())

	_, err = db.GetState(ctx, "Rawdata")
	assert.NoError(t, err, "data survives the migration")

	// Nothing newer, no second backup
	require.NoError(t, db.migrateFrom(ctx, migrations))
	entries, err = os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMigrateFreshDatabaseWithoutBackup(t *testing.T) {
	dir := t.TempDir()
	db, err := New(context.Background(), filepath.Join(dir, "awattar.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = os.Stat(filepath.Join(dir, "backups"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, filepath.Join(dir, "awattar.db"), db.Path())
}

func TestStates(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	require.NoError(t, db.SetObjectNotExists(ctx, "prices.0.nettoPriceKwh", priceObj))
	require.NoError(t, db.SetObjectNotExists(ctx, "prices.0.nettoPriceKwh", types.StateObject{Name: "ignored"}))
	require.NoError(t, db.SetObjectNotExists(ctx, "prices.0.start", types.StateObject{Name: "start", Type: types.StateTypeString, Role: "value", Read: true}))
	require.NoError(t, db.SetObjectNotExists(ctx, "prices.0.startTimestamp", types.StateObject{Name: "startTimestamp", Type: types.StateTypeNumber, Role: "value", Read: true}))

	require.NoError(t, db.SetState(ctx, "prices.0.nettoPriceKwh", 9.99, true))
	require.NoError(t, db.SetState(ctx, "prices.0.nettoPriceKwh", 11.25, true))
	require.NoError(t, db.SetState(ctx, "prices.0.startTimestamp", int64(1736895600000), true))

	s, err := db.GetState(ctx, "prices.0.nettoPriceKwh")
	require.NoError(t, err)
	assert.Equal(t, priceObj, s.Object)
	assert.Equal(t, 11.25, s.Val)
	assert.True(t, s.Ack)
	require.NotNil(t, s.UpdatedAt)
	assert.WithinDuration(t, time.Now(), *s.UpdatedAt, time.Minute)

	states, err := db.GetStates(ctx, "prices.0.")
	require.NoError(t, err)
	require.Len(t, states, 3)
	assert.Equal(t, "prices.0.nettoPriceKwh", states[0].Id)
	assert.Equal(t, "prices.0.start", states[1].Id)
	assert.Nil(t, states[1].Val, "declared but never written")
	assert.Nil(t, states[1].UpdatedAt)
	assert.Equal(t, float64(1736895600000), states[2].Val)
}

func TestSetStateUndeclared(t *testing.T) {
	db := newTestDatabase(t)
	err := db.SetState(context.Background(), "nope", 1.0, true)
	assert.Error(t, err, "values need a declared object")
}

func TestTrim(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	ids := []string{"prices.0.start", "prices.1.start", "prices.2.start", "prices.12.start", "pricesOrdered.4.start", "Rawdata"}
	for _, id := range ids {
		require.NoError(t, db.SetObjectNotExists(ctx, id, priceObj))
		require.NoError(t, db.SetState(ctx, id, 1.0, true))
	}

	require.NoError(t, db.Trim(ctx, "prices", 2))

	states, err := db.GetStates(ctx, "")
	require.NoError(t, err)
	var got []string
	for _, s := range states {
		got = append(got, s.Id)
	}
	assert.Equal(t, []string{"Rawdata", "prices.0.start", "prices.1.start", "pricesOrdered.4.start"}, got)

	// The values of deleted objects are gone as well
	var n int
	require.NoError(t, db.read.QueryRowContext(ctx, "SELECT COUNT(*) FROM state_value").Scan(&n))
	assert.Equal(t, 4, n)
}

func TestLogEntries(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	for i, lvl := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		require.NoError(t, db.SaveLogEntry(ctx, LogEntryRow{
			Timestamp: time.Now().Add(time.Duration(i) * time.Second),
			Level:     int(lvl),
			Message:   lvl.String(),
		}))
	}

	entries, err := db.GetLogEntries(ctx, slog.LevelInfo, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "ERROR", entries[0].Message)

	require.NoError(t, db.PurgeLog(ctx, 2))
	entries, err = db.GetLogEntries(ctx, slog.LevelDebug, 1, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	require.NoError(t, db.SetObjectNotExists(ctx, "Rawdata", priceObj))

	zipPath, err := db.Backup(ctx)
	require.NoError(t, err)
	assert.FileExists(t, zipPath)
	assert.NoFileExists(t, zipPath[:len(zipPath)-len(".zip")])

	old := filepath.Join(db.backupDir(), "20000101_000000_awattar.db.zip")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0644))
	other := filepath.Join(db.backupDir(), "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))

	require.NoError(t, db.PurgeBackups(ctx, 30))

	assert.NoFileExists(t, old)
	assert.FileExists(t, zipPath)
	assert.FileExists(t, other)
}

func TestPurgeBackupsWithoutDirectory(t *testing.T) {
	db := newTestDatabase(t)
	assert.NoError(t, db.PurgeBackups(context.Background(), 30))
}
