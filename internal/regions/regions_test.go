package regions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("keeps configuration order", func(t *testing.T) {
		c, err := New([]Descriptor{{ID: 78, Name: " Санкт-Петербург ", CRS: 32636}, {ID: 47, Name: "Ленинградская область", CRS: 32636}})
		require.NoError(t, err)
		assert.Equal(t, 2, c.Len())
		assert.Equal(t, []int{78, 47}, []int{c.All()[0].ID, c.All()[1].ID})
		d, err := c.Resolve(78)
		require.NoError(t, err)
		assert.Equal(t, "Санкт-Петербург", d.Name)
	})

	t.Run("unknown id", func(t *testing.T) {
		c, err := New(nil)
		require.NoError(t, err)
		_, err = c.Resolve(47)
		assert.True(t, errors.Is(err, errors.NotFound))
	})

	t.Run("all returns a copy", func(t *testing.T) {
		c, err := Builtin(SchemeSubject)
		require.NoError(t, err)
		all := c.All()
		all[0].Name = "changed"
		d, _ := c.Resolve(all[0].ID)
		assert.NotEqual(t, "changed", d.Name)
	})

	for name, ds := range map[string][]Descriptor{
		"non positive id": {{ID: 0, Name: "x", CRS: 32636}},
		"empty name":      {{ID: 1, Name: " ", CRS: 32636}},
		"missing crs":     {{ID: 1, Name: "x"}},
		"unsupported crs": {{ID: 1, Name: "x", CRS: 2154}},
		"crs out of zone": {{ID: 1, Name: "x", CRS: 32661}},
		"duplicate id":    {{ID: 1, Name: "x", CRS: 32636}, {ID: 1, Name: "y", CRS: 32636}},
		"duplicate name":  {{ID: 1, Name: "x", CRS: 32636}, {ID: 2, Name: "x", CRS: 32636}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(ds)
			assert.Error(t, err)
		})
	}

	for _, crs := range []int{4326, 3857, 32636, 32760} {
		t.Run("accepts projectable crs", func(t *testing.T) {
			_, err := New([]Descriptor{{ID: 1, Name: "x", CRS: crs}})
			assert.NoError(t, err, crs)
		})
	}
}

func TestBuiltin(t *testing.T) {
	sub, err := Builtin("")
	require.NoError(t, err)
	_, err = sub.Resolve(47)
	assert.NoError(t, err)

	urb, err := Builtin(SchemeUrban)
	require.NoError(t, err)
	d, err := urb.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, "Ленинградская область", d.Name)
	_, err = urb.Resolve(47)
	assert.True(t, errors.Is(err, errors.NotFound))

	_, err = Builtin("oktmo")
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestLoadFileRejectsUnsupportedCRS(t *testing.T) {
	p := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(p, []byte("regions:\n  - id: 47\n    name: Ленинградская область\n    crs: 28406\n"), 0o644))
	_, err := LoadFile(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
	assert.Contains(t, err.Error(), "28406")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "regions.yaml")
	require.NoError(t, os.WriteFile(p, []byte("regions:\n  - id: 47\n    name: Ленинградская область\n    crs: 32636\n  - id: 10\n    name: Карелия\n    crs: 32636\n"), 0o644))
	c, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	d, err := c.Resolve(10)
	require.NoError(t, err)
	assert.Equal(t, "Карелия", d.Name)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("regions: []\n"), 0o644))
	_, err = LoadFile(empty)
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
