package utils

import (
	"context"
	"net"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "")
	t.Setenv("PG_USER", "popframe")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_DB", "")
	t.Setenv("PG_SSLMODE", "require")
	assert.Equal(t, "postgres://popframe:secret@db:5432/popframe?sslmode=require", BuildPostgresDSNFromEnv())

	t.Setenv("PG_PASSWORD", "")
	assert.Equal(t, "postgres://popframe@db:5432/popframe?sslmode=require", BuildPostgresDSNFromEnv())
}

func TestOpenRedisFromEnv(t *testing.T) {
	t.Run("disabled without host", func(t *testing.T) {
		t.Setenv("REDIS_HOST", "")
		assert.Nil(t, OpenRedisFromEnv())
	})

	t.Run("connects", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host, port, err := net.SplitHostPort(mr.Addr())
		require.NoError(t, err)
		t.Setenv("REDIS_HOST", host)
		t.Setenv("REDIS_PORT", port)
		t.Setenv("REDIS_DB", "")
		rc := OpenRedisFromEnv()
		require.NotNil(t, rc)
		defer rc.Close()
		require.NoError(t, rc.Set(context.Background(), "k", "v", 0).Err())
		v, err := mr.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	})
}
