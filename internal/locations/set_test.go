package locations

import (
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

func fill(t *testing.T, s *Set, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.Add(model.Location{Address: fmt.Sprintf("주소 %d", i+1)}))
	}
}

func TestSet_AddUntilFull(t *testing.T) {
	t.Parallel()

	s := NewSet()
	fill(t, s, MaxLocations)
	assert.True(t, s.Full())

	err := s.Add(model.Location{Address: "하나 더"})
	assert.True(t, eris.Is(err, ErrCapacityExceeded))
	assert.Equal(t, MaxLocations, s.Len())
}

func TestSet_AddRejectsBlankAddress(t *testing.T) {
	t.Parallel()

	s := NewSet()
	assert.ErrorIs(t, s.Add(model.Location{Address: "   "}), ErrEmptyAddress)
	assert.Equal(t, 0, s.Len())
}

func TestSet_AddNormalizesAddress(t *testing.T) {
	t.Parallel()

	s := NewSet()
	// "강남" written as decomposed jamo.
	require.NoError(t, s.Add(model.Location{Address: "  \u1100\u1161\u11bc\u1102\u1161\u11b7  "}))
	loc, ok := s.At(0)
	require.True(t, ok)
	assert.Equal(t, "강남", loc.Address)
}

func TestSet_AddKeepsCoordinates(t *testing.T) {
	t.Parallel()

	s := NewSet()
	require.NoError(t, s.Add(model.NewLocationAt("시청", 37.5665, 126.978)))
	loc, _ := s.At(0)
	lat, lng, ok := loc.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 37.5665, lat, 1e-9)
	assert.InDelta(t, 126.978, lng, 1e-9)
}

func TestSet_RemoveShrinksAndNotifies(t *testing.T) {
	t.Parallel()

	for size := 1; size <= MaxLocations; size++ {
		for i := 0; i < size; i++ {
			s := NewSet()
			fill(t, s, size)
			stale := 0
			s.OnStale(func() { stale++ })

			require.NoError(t, s.Remove(i))
			assert.Equal(t, size-1, s.Len())
			assert.Equal(t, 1, stale)
		}
	}
}

func TestSet_RemovePreservesOrder(t *testing.T) {
	t.Parallel()

	s := NewSet()
	fill(t, s, 3)
	require.NoError(t, s.Remove(1))

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "주소 1", all[0].Address)
	assert.Equal(t, "주소 3", all[1].Address)
}

func TestSet_RemoveOutOfRange(t *testing.T) {
	t.Parallel()

	s := NewSet()
	fill(t, s, 2)
	stale := 0
	s.OnStale(func() { stale++ })

	for _, i := range []int{-1, 2, 10} {
		err := s.Remove(i)
		assert.True(t, eris.Is(err, ErrIndexOutOfRange), "index %d", i)
	}
	assert.Equal(t, 2, s.Len())
	assert.Zero(t, stale)
}

func TestSet_AllReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewSet()
	fill(t, s, 1)
	all := s.All()
	all[0].Address = "changed"

	loc, _ := s.At(0)
	assert.Equal(t, "주소 1", loc.Address)
}

func TestParseLocation(t *testing.T) {
	t.Parallel()

	loc, err := ParseLocation("강남역")
	require.NoError(t, err)
	assert.Equal(t, "강남역", loc.Address)
	assert.False(t, loc.HasCoordinates())

	loc, err = ParseLocation("홍대입구역@37.5572, 126.9245")
	require.NoError(t, err)
	lat, lng, ok := loc.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 37.5572, lat, 1e-9)
	assert.InDelta(t, 126.9245, lng, 1e-9)

	_, err = ParseLocation("@37,127")
	assert.ErrorIs(t, err, ErrEmptyAddress)

	_, err = ParseLocation("역@37.5")
	assert.Error(t, err)

	_, err = ParseLocation("역@north,127")
	assert.Error(t, err)
}

func TestCurrentLocation(t *testing.T) {
	t.Parallel()

	loc := CurrentLocation(37.5, 127.0)
	assert.Equal(t, "현재 위치 (37.500000, 127.000000)", loc.Address)
	assert.True(t, loc.HasCoordinates())
}
