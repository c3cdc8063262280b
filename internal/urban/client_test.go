package urban

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/juju/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, srv.Client(), WithRand(rand.New(rand.NewPCG(1, 2))))
}

func TestFetchBoundary(t *testing.T) {
	t.Run("returns the polygon", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/territory/47", r.URL.Path)
			_, _ = w.Write([]byte(`{"territory_id":47,"name":"Ленинградская область","geometry":{"type":"Polygon","coordinates":[[[29,59],[32,59],[32,61],[29,61],[29,59]]]}}`))
		})
		g, err := c.FetchBoundary(context.Background(), 47)
		require.NoError(t, err)
		poly, ok := g.(orb.Polygon)
		require.True(t, ok)
		assert.Len(t, poly[0], 5)
	})

	t.Run("404 is not found", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
		_, err := c.FetchBoundary(context.Background(), 47)
		assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
	})

	t.Run("null geometry is not found", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"territory_id":47,"geometry":null}`))
		})
		_, err := c.FetchBoundary(context.Background(), 47)
		assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
	})

	t.Run("server error is not a not-found", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		_, err := c.FetchBoundary(context.Background(), 47)
		require.Error(t, err)
		assert.False(t, errors.Is(err, errors.NotFound))
	})

	t.Run("non areal geometry is rejected", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"territory_id":47,"geometry":{"type":"Point","coordinates":[30,60]}}`))
		})
		_, err := c.FetchBoundary(context.Background(), 47)
		assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
	})
}

const territories = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"territory_id":100,"name":"district","level":2,"territory_type":{"id":1,"name":"Район"}},
  "geometry":{"type":"Polygon","coordinates":[[[29,59],[31,59],[31,60],[29,60],[29,59]]]}},
 {"type":"Feature","properties":{"territory_id":201,"name":"Луга","level":3,"population":36000,"territory_type":{"id":2,"name":"Город"}},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[3,0],[3,3],[2,3],[2,1],[1,1],[1,3],[0,3],[0,0]]]}},
 {"type":"Feature","properties":{"territory_id":202,"name":"Оредеж","level":3,"territory_type":{"id":3,"name":"Посёлок"}},
  "geometry":{"type":"Point","coordinates":[30.1,58.8]}},
 {"type":"Feature","properties":{"territory_id":203,"name":"Толмачёво","level":3,"population":null},
  "geometry":{"type":"MultiPolygon","coordinates":[[[[30,58],[30.2,58],[30.2,58.2],[30,58.2],[30,58]]]]}},
 {"type":"Feature","properties":{"name":"no id","level":3},
  "geometry":{"type":"Point","coordinates":[30,58]}}
]}`

func TestFetchTowns(t *testing.T) {
	t.Run("selects the deepest level and converts geometry", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/all_territories", r.URL.Path)
			assert.Equal(t, "47", r.URL.Query().Get("parent_id"))
			assert.Equal(t, "true", r.URL.Query().Get("get_all_levels"))
			_, _ = w.Write([]byte(territories))
		})
		towns, err := c.FetchTowns(context.Background(), 47)
		require.NoError(t, err)
		require.Len(t, towns, 3)

		byID := map[int64]int{}
		for i, tw := range towns {
			byID[tw.ID] = i
			assert.Equal(t, 3, tw.TerritoryLevel)
			assert.Zero(t, tw.Level)
		}
		require.Contains(t, byID, int64(201))
		require.Contains(t, byID, int64(202))
		require.Contains(t, byID, int64(203))

		luga := towns[byID[201]]
		assert.Equal(t, 36000, luga.Population)
		assert.False(t, luga.PopulationSynthetic)
		u := orb.Polygon{{{0, 0}, {3, 0}, {3, 3}, {2, 3}, {2, 1}, {1, 1}, {1, 3}, {0, 3}, {0, 0}}}
		assert.True(t, planar.PolygonContains(u, luga.Point))

		assert.Equal(t, orb.Point{30.1, 58.8}, towns[byID[202]].Point)
		assert.Equal(t, "Город", luga.TerritoryType)
		assert.Equal(t, "Посёлок", towns[byID[202]].TerritoryType)
		assert.Empty(t, towns[byID[203]].TerritoryType)
	})

	t.Run("missing population is synthesized within bounds", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(territories)) })
		towns, err := c.FetchTowns(context.Background(), 47)
		require.NoError(t, err)
		synthetic := 0
		for _, tw := range towns {
			if tw.ID == 201 {
				continue
			}
			assert.True(t, tw.PopulationSynthetic, "town %d", tw.ID)
			assert.GreaterOrEqual(t, tw.Population, PopulationMin)
			assert.Less(t, tw.Population, PopulationMax)
			synthetic++
		}
		assert.Equal(t, 2, synthetic)
	})

	t.Run("empty collection is not found", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
		})
		_, err := c.FetchTowns(context.Background(), 47)
		assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
	})

	t.Run("malformed body", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{`)) })
		_, err := c.FetchTowns(context.Background(), 47)
		require.Error(t, err)
		assert.False(t, errors.Is(err, errors.NotFound))
	})
}
