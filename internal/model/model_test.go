package model

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"popframe-api/internal/regions"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lenobl = regions.Descriptor{ID: 47, Name: "Ленинградская область", CRS: 32636}

func fixture() (orb.Geometry, []Town, Matrix) {
	boundary := orb.Polygon{{{29, 59}, {32, 59}, {32, 61}, {29, 61}, {29, 59}}}
	towns := []Town{
		{ID: 1, Name: "a", Point: orb.Point{30, 59.5}, Population: 1000, Level: 8},
		{ID: 2, Name: "b", Point: orb.Point{31, 60}, Population: 50000, Level: 6},
		{ID: 3, Name: "c", Point: orb.Point{30.5, 60.5}, Population: 300, Level: 9},
	}
	mx := Matrix{
		GraphType: "drive",
		Index:     []int64{1, 2, 3},
		Columns:   []int64{3, 1, 2},
		Values: [][]float64{
			{13, 0, 12},
			{23, 21, 0},
			{0, 31, 32},
		},
	}
	return boundary, towns, mx
}

func TestAssemble(t *testing.T) {
	t.Run("builds a projected model with aligned matrix", func(t *testing.T) {
		b, towns, mx := fixture()
		m, err := Assemble(lenobl, b, towns, mx)
		require.NoError(t, err)

		assert.Equal(t, 47, m.RegionID())
		assert.Equal(t, 32636, m.CRS())
		assert.Equal(t, 3, m.TownCount())

		got := m.Matrix()
		assert.Equal(t, []int64{1, 2, 3}, got.Index)
		assert.Equal(t, got.Index, got.Columns)
		assert.Equal(t, [][]float64{{0, 12, 13}, {21, 0, 23}, {31, 32, 0}}, got.Values)

		v, ok := m.Travel(2, 3)
		require.True(t, ok)
		assert.Equal(t, 23.0, v)
		_, ok = m.Travel(2, 99)
		assert.False(t, ok)

		for _, tw := range m.Towns() {
			assert.Greater(t, tw.Point.X(), 1000.0, "town %d still in degrees", tw.ID)
		}
		poly, ok := m.Boundary().(orb.Polygon)
		require.True(t, ok)
		assert.Greater(t, poly[0][0].Y(), 6000000.0)
	})

	t.Run("does not alias caller data", func(t *testing.T) {
		b, towns, mx := fixture()
		m, err := Assemble(lenobl, b, towns, mx)
		require.NoError(t, err)

		assert.Equal(t, orb.Point{30, 59.5}, towns[0].Point)
		ts := m.Towns()
		ts[0].Name = "changed"
		assert.Equal(t, "a", m.Towns()[0].Name)
		mm := m.Matrix()
		mm.Values[0][0] = 999
		v, _ := m.Travel(1, 1)
		assert.Equal(t, 0.0, v)
	})

	failures := map[string]func(b *orb.Geometry, towns *[]Town, mx *Matrix, d *regions.Descriptor){
		"matrix has an extra id": func(_ *orb.Geometry, _ *[]Town, mx *Matrix, _ *regions.Descriptor) {
			mx.Index = []int64{1, 2, 4}
		},
		"matrix misses a town": func(_ *orb.Geometry, towns *[]Town, _ *Matrix, _ *regions.Descriptor) {
			*towns = append(*towns, Town{ID: 5, Point: orb.Point{30, 60}})
		},
		"columns differ from rows": func(_ *orb.Geometry, _ *[]Town, mx *Matrix, _ *regions.Descriptor) {
			mx.Columns = []int64{1, 2, 7}
		},
		"duplicate matrix id": func(_ *orb.Geometry, _ *[]Town, mx *Matrix, _ *regions.Descriptor) {
			mx.Index = []int64{1, 1, 3}
		},
		"duplicate town id": func(_ *orb.Geometry, towns *[]Town, _ *Matrix, _ *regions.Descriptor) {
			(*towns)[1].ID = 1
		},
		"ragged row": func(_ *orb.Geometry, _ *[]Town, mx *Matrix, _ *regions.Descriptor) {
			mx.Values[1] = []float64{1, 2}
		},
		"empty matrix": func(_ *orb.Geometry, _ *[]Town, mx *Matrix, _ *regions.Descriptor) {
			*mx = Matrix{}
		},
		"no towns": func(_ *orb.Geometry, towns *[]Town, _ *Matrix, _ *regions.Descriptor) {
			*towns = nil
		},
		"missing boundary": func(b *orb.Geometry, _ *[]Town, _ *Matrix, _ *regions.Descriptor) {
			*b = nil
		},
		"point boundary": func(b *orb.Geometry, _ *[]Town, _ *Matrix, _ *regions.Descriptor) {
			*b = orb.Point{30, 60}
		},
		"unsupported crs": func(_ *orb.Geometry, _ *[]Town, _ *Matrix, d *regions.Descriptor) {
			d.CRS = 2154
		},
	}
	for name, mutate := range failures {
		t.Run("fails: "+name, func(t *testing.T) {
			b, towns, mx := fixture()
			d := lenobl
			mutate(&b, &towns, &mx, &d)
			m, err := Assemble(d, b, towns, mx)
			assert.Nil(t, m)
			var ae *AssemblyError
			require.True(t, errors.As(err, &ae), "got %v", err)
			assert.Equal(t, 47, ae.RegionID)
		})
	}
}

func TestArtifact(t *testing.T) {
	b, towns, mx := fixture()
	towns[2].PopulationSynthetic = true
	m, err := assemble(lenobl, b, towns, mx, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	t.Run("decode restores the model", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, m))
		got, err := Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, m.RegionID(), got.RegionID())
		assert.Equal(t, m.Name(), got.Name())
		assert.Equal(t, m.CRS(), got.CRS())
		assert.True(t, m.BuiltAt().Equal(got.BuiltAt()))
		assert.Equal(t, m.Towns(), got.Towns())
		assert.Equal(t, m.Matrix(), got.Matrix())
		assert.Equal(t, m.Boundary(), got.Boundary())
	})

	t.Run("encoding is deterministic", func(t *testing.T) {
		var a, c bytes.Buffer
		require.NoError(t, Encode(&a, m))
		require.NoError(t, Encode(&c, m))
		assert.Equal(t, a.Bytes(), c.Bytes())
	})

	t.Run("truncated artifact is rejected", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, m))
		_, err := Decode(bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
		assert.Error(t, err)
	})

	t.Run("not gzip", func(t *testing.T) {
		_, err := Decode(bytes.NewReader([]byte(`{"version":1}`)))
		assert.Error(t, err)
	})
}
