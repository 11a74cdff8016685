package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"procurement-harvester/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedis(context.Background(), config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()

	require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), config.RedisConfig{Address: addr})
	assert.Error(t, err)
}

func TestNewPostgres_DoesNotDial(t *testing.T) {
	c, err := NewPostgres(config.PostgresConfig{
		Host: "127.0.0.1", Port: 1, Database: "harvest", User: "harvest", SSLMode: "disable",
		MaxConnections: 2, MaxIdle: 1,
	})
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}

func TestElasticsearch_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	assert.NoError(t, c.Ping(context.Background()))
}
