package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[server]
name = "mail1"
listen = ":8080"

[auth]
secret = "s3cret"
ttl = "2h"

[delegation]
timeout = "5s"
rate = 2.5
burst = 3

[crawl]
parallelism = 8

[directory.attrs]
firstName = "givenName"
lastName = "sn"
company = "company"

[servers.mail2]
host = "mail2.example.com"
mode = "http"
port = 8080

[servers.mail3]
host = "mail3.example.com"
`

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))
}

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")

	_, err := NewConfigStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "this is [not valid")

	_, err := NewConfigStore(tmpDir)
	assert.Error(t, err)
}

func TestConfigStore_NestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, sampleConfig)

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "mail1", store.GetString("server.name"))
	assert.Equal(t, 8, store.GetInt("crawl.parallelism"))
	assert.Equal(t, 2.5, store.GetFloat("delegation.rate"))
	assert.Equal(t, 3.0, store.GetFloat("delegation.burst"))
	assert.Equal(t, 5*time.Second, store.GetDuration("delegation.timeout"))
	assert.Equal(t, 2*time.Hour, store.GetDuration("auth.ttl"))
	assert.Equal(t, 8080, store.GetInt("servers.mail2.port"))
}

func TestConfigStore_GetStringMap(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, sampleConfig)

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"firstName": "givenName",
		"lastName":  "sn",
		"company":   "company",
	}, store.GetStringMap("directory.attrs"))
	assert.Empty(t, store.GetStringMap("missing"))
}

func TestConfigStore_Keys(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, sampleConfig)

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"mail2", "mail3"}, store.Keys("servers"))
	assert.Empty(t, store.Keys("nothing"))
}

func TestConfigStore_TypeMismatch(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, sampleConfig)

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 0, store.GetInt("server.name"))
	assert.False(t, store.GetBool("server.name"))
	assert.Equal(t, 0.0, store.GetFloat("server.name"))
	assert.Equal(t, time.Duration(0), store.GetDuration("server.name"))
	assert.Equal(t, "", store.GetString("crawl.parallelism"))
	assert.Nil(t, store.GetStringSlice("server.name"))
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("auth.secret", "abc"))
	require.NoError(t, store.Set("crawl.parallelism", 2))
	require.NoError(t, store.Set("debug", true))
	require.NoError(t, store.Set("tags", []string{"a", "b"}))

	assert.Equal(t, "abc", store.GetString("auth.secret"))
	assert.Equal(t, 2, store.GetInt("crawl.parallelism"))
	assert.True(t, store.GetBool("debug"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("tags"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	store1, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store1.Set("server.name", "mail1"))
	require.NoError(t, store1.Set("servers.mail2.host", "mail2.example.com"))
	require.NoError(t, store1.Set("crawl.parallelism", 6))

	store2, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "mail1", store2.GetString("server.name"))
	assert.Equal(t, "mail2.example.com", store2.GetString("servers.mail2.host"))
	assert.Equal(t, 6, store2.GetInt("crawl.parallelism"))

	// saved as tables, not quoted dotted keys
	data, err := os.ReadFile(store1.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[server]")
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("auth.secret", "abc"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Load_Replaces(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, sampleConfig)

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	writeConfig(t, tmpDir, "[server]\nname = \"other\"\n")
	require.NoError(t, store.Load())

	assert.Equal(t, "other", store.GetString("server.name"))
	assert.Empty(t, store.GetString("auth.secret"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("crawl.parallelism", n)
			_ = store.GetInt("crawl.parallelism")
			_ = store.Keys("crawl")
		}(i)
	}
	wg.Wait()
}

func TestUnflattenMap(t *testing.T) {
	got := unflattenMap(map[string]any{
		"a.b.c": 1,
		"a.d":   "x",
		"e":     true,
	})

	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1},
			"d": "x",
		},
		"e": true,
	}, got)
}
