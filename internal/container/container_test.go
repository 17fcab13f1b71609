package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lraide/adapters/blobstore"
	"lraide/adapters/sqlstore"
	"lraide/domain/dataset"
	"lraide/internal/config"
)

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestInit_FileStorageByDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Storage.SnapshotDir = t.TempDir()

	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background()))
	defer c.Shutdown(context.Background())

	assert.IsType(t, &blobstore.SnapshotStore{}, c.Snapshots)
	assert.Nil(t, c.DB)
	require.NotNil(t, c.Server)

	w := httptest.NewRecorder()
	c.Server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestInit_SQLiteStorage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Storage.DBDriver = "sqlite"
	cfg.Storage.DBURL = ":memory:"
	cfg.Metrics.Enabled = false

	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background()))

	assert.IsType(t, &sqlstore.SnapshotRepository{}, c.Snapshots)
	require.NotNil(t, c.DB)

	w := httptest.NewRecorder()
	c.Server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, c.Shutdown(context.Background()))
}

func TestShutdown_ClosesSessions(t *testing.T) {
	cfg := config.Default()
	c, err := New(cfg)
	require.NoError(t, err)
	reg := c.InitEngine()

	s := reg.Create("a", dataset.Empty("x", "y"))
	_, err = reg.Fork(s.ID())
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, 0, reg.Len())
	assert.True(t, s.Closed())
}
