package ledger

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformBackupCopiesDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "bookings.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("sqlite-bytes"), 0o644))

	logger := zerolog.New(io.Discard)
	s := NewBackupService(dbPath, BackupConfig{
		Enabled:     true,
		StoragePath: filepath.Join(dir, "backups"),
	}, &logger)

	require.NoError(t, s.PerformBackup())

	files, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(filepath.Join(dir, "backups", files[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, []byte("sqlite-bytes"), data)
}

func TestCleanupOldBackups(t *testing.T) {
	dir := t.TempDir()
	backups := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backups, 0o755))

	oldFile := filepath.Join(backups, "bookings_old.db")
	newFile := filepath.Join(backups, "bookings_new.db")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newFile, []byte("new"), 0o644))
	stale := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(oldFile, stale, stale))

	logger := zerolog.New(io.Discard)
	s := NewBackupService(filepath.Join(dir, "bookings.db"), BackupConfig{
		Enabled:       true,
		StoragePath:   backups,
		RetentionDays: 14,
	}, &logger)

	s.CleanupOldBackups()

	_, err := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(newFile)
	assert.NoError(t, err)
}
