package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskRoundTrip(t *testing.T) {
	disk, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	stored := Entry{
		Payload:  json.RawMessage(`{"flow_mw":5200}`),
		StoredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, disk.Set("abc123", stored))

	got, ok, err := disk.Get("abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(stored.Payload), string(got.Payload))
	assert.True(t, stored.StoredAt.Equal(got.StoredAt))
}

func TestDiskMissingKey(t *testing.T) {
	disk, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	_, ok, err := disk.Get("nope")
	require.NoError(t, err, "a missing entry is a miss, not an error")
	assert.False(t, ok)
}

func TestDiskSetLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDisk(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, disk.Set("key", Entry{
			Payload:  json.RawMessage(`1`),
			StoredAt: time.Now(),
		}))
	}

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "overwrites must not accumulate files")
}

func TestDiskCorruptEntryIsStorageError(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDisk(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{truncated"), 0o644))

	_, _, err = disk.Get("bad")
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "decode", storageErr.Op)
}

func TestDiskDeleteAndClear(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDisk(dir)
	require.NoError(t, err)

	entry := Entry{Payload: json.RawMessage(`1`), StoredAt: time.Now()}
	require.NoError(t, disk.Set("a", entry))
	require.NoError(t, disk.Set("b", entry))

	require.NoError(t, disk.Delete("a"))
	require.NoError(t, disk.Delete("a"), "deleting a missing key is not an error")

	_, ok, err := disk.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, disk.Clear())
	_, ok, err = disk.Get("b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDisk(dir)
	require.NoError(t, err)
	require.NoError(t, disk.Set("persist", Entry{
		Payload:  json.RawMessage(`"kept"`),
		StoredAt: time.Now(),
	}))

	reopened, err := NewDisk(dir)
	require.NoError(t, err)
	got, ok, err := reopened.Get("persist")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"kept"`, string(got.Payload))
}
