package levels

import (
	"testing"

	"popframe-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulationFiller(t *testing.T) {
	in := []model.Town{
		{ID: 1, Population: 5400000},
		{ID: 2, Population: 1000000},
		{ID: 3, Population: 99999},
		{ID: 4, Population: 200},
		{ID: 5, Population: 0},
	}
	out, err := NewPopulationFiller(nil).Fill(in)
	require.NoError(t, err)
	require.Len(t, out, len(in))

	levels := []int{out[0].Level, out[1].Level, out[2].Level, out[3].Level, out[4].Level}
	assert.Equal(t, []int{1, 2, 5, 9, 10}, levels)
	assert.Equal(t, "Сверхкрупный город", out[0].LevelName)

	t.Run("input untouched", func(t *testing.T) {
		assert.Zero(t, in[0].Level)
		assert.Empty(t, in[0].LevelName)
	})

	t.Run("custom classes in any order", func(t *testing.T) {
		f := NewPopulationFiller([]Class{
			{Level: 2, Name: "small", MinPopulation: 0},
			{Level: 1, Name: "big", MinPopulation: 1000},
		})
		out, err := f.Fill([]model.Town{{Population: 10}, {Population: 5000}})
		require.NoError(t, err)
		assert.Equal(t, "small", out[0].LevelName)
		assert.Equal(t, "big", out[1].LevelName)
	})

	t.Run("empty input", func(t *testing.T) {
		out, err := NewPopulationFiller(nil).Fill(nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}
