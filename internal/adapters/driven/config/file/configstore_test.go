package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/services"
)

func TestNewConfigStore_Path(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, FileName), store.Path())
}

func TestNewConfigStore_HomeEnv(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(HomeEnv, filepath.Join(tmpDir, "nested", "home"))

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "nested", "home", FileName), store.Path())
	assert.DirExists(t, filepath.Join(tmpDir, "nested", "home"))
}

func TestConfigStore_MissingFileIsEmpty(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	val, ok := store.Get("sync.prune")
	assert.False(t, ok)
	assert.Nil(t, val)
	assert.NoFileExists(t, store.Path())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("a.string", "hello"))
	require.NoError(t, store.Set("a.int", 42))
	require.NoError(t, store.Set("a.float", 2.5))
	require.NoError(t, store.Set("a.bool", true))

	assert.Equal(t, "hello", store.GetString("a.string"))
	assert.Equal(t, 42, store.GetInt("a.int"))
	assert.Equal(t, 42.0, store.GetFloat("a.int"))
	assert.Equal(t, 2.5, store.GetFloat("a.float"))
	assert.True(t, store.GetBool("a.bool"))

	// wrong types read as zero values
	assert.Empty(t, store.GetString("a.int"))
	assert.Zero(t, store.GetInt("a.string"))
	assert.Zero(t, store.GetFloat("a.bool"))
	assert.False(t, store.GetBool("a.string"))
}

func TestConfigStore_WritesTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("sync.prune", true))
	require.NoError(t, store.Set("sync.max_failures", 3))
	require.NoError(t, store.Set("database.path", "/var/lib/migrato/site.db"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[sync]")
	assert.Contains(t, string(raw), "[database]")

	reopened, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.True(t, reopened.GetBool("sync.prune"))
	assert.Equal(t, 3, reopened.GetInt("sync.max_failures"))
	assert.Equal(t, "/var/lib/migrato/site.db", reopened.GetString("database.path"))
}

func TestConfigStore_ReadsHandWrittenFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[sync]
prune = true
write_rate = 20

[log]
verbose = true
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, FileName), []byte(content), 0o600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.True(t, store.GetBool("sync.prune"))
	assert.Equal(t, 20.0, store.GetFloat("sync.write_rate"))
	assert.True(t, store.GetBool("log.verbose"))
}

func TestConfigStore_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, FileName), []byte("[sync\nprune ="), 0o600))

	_, err := NewConfigStore(tmpDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestConfigStore_ConflictingKeyIsRolledBack(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("sync", "flat"))
	err = store.Set("sync.prune", true)

	require.Error(t, err)
	_, ok := store.Get("sync.prune")
	assert.False(t, ok)
	assert.Equal(t, "flat", store.GetString("sync"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("log.verbose", false))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "worker.k" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_, _ = store.Get(key)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		assert.Equal(t, i, store.GetInt("worker.k"+string(rune('0'+i))))
	}
}

func TestConfigStore_WithSettingsService(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	svc := services.NewSettingsService(store, tmpDir)

	settings, err := svc.Get()
	require.NoError(t, err)
	settings.Prune = true
	settings.WriteRate = 12.5
	settings.MaxFailures = 4
	require.NoError(t, svc.Save(settings))

	reopened, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	got, err := services.NewSettingsService(reopened, tmpDir).Get()
	require.NoError(t, err)
	assert.True(t, got.Prune)
	assert.Equal(t, 12.5, got.WriteRate)
	assert.Equal(t, 4, got.MaxFailures)
	assert.Equal(t, domain.DefaultSettings(tmpDir).DatabasePath, got.DatabasePath)
}
