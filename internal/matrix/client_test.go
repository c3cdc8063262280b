package matrix

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, srv.Client())
}

func TestFetchMatrix(t *testing.T) {
	t.Run("decodes index, columns and values", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api_v1/47/get_matrix", r.URL.Path)
			assert.Equal(t, "drive", r.URL.Query().Get("graph_type"))
			_, _ = w.Write([]byte(`{"index":[1,2],"columns":[2,1],"values":[[5,0],[0,7]]}`))
		})
		mx, err := c.FetchMatrix(context.Background(), 47, "drive")
		require.NoError(t, err)
		assert.Equal(t, "drive", mx.GraphType)
		assert.Equal(t, []int64{1, 2}, mx.Index)
		assert.Equal(t, []int64{2, 1}, mx.Columns)
		assert.Equal(t, [][]float64{{5, 0}, {0, 7}}, mx.Values)
	})

	t.Run("empty matrix is not found", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"index":[],"columns":[],"values":[]}`))
		})
		_, err := c.FetchMatrix(context.Background(), 47, "drive")
		assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
	})

	t.Run("404 is not found", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
		_, err := c.FetchMatrix(context.Background(), 47, "walk")
		assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
	})

	t.Run("ragged rows are invalid", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"index":[1,2],"columns":[1,2],"values":[[0,1],[1]]}`))
		})
		_, err := c.FetchMatrix(context.Background(), 47, "drive")
		assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
	})

	t.Run("upstream failure", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "graph not ready", http.StatusServiceUnavailable)
		})
		_, err := c.FetchMatrix(context.Background(), 47, "drive")
		require.Error(t, err)
		assert.False(t, errors.Is(err, errors.NotFound))
		assert.Contains(t, err.Error(), "503")
	})
}
