package radar

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/couchcryptid/radar-volume-etl/internal/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_KeepsEveryKey(t *testing.T) {
	v := &Volume{}
	builds := map[string]int{}
	build := func(key string) func() (Product, error) {
		return func() (Product, error) {
			builds[key]++
			return Product{Name: key}, nil
		}
	}

	for i := 0; i < 17; i++ {
		key := fmt.Sprintf("CAPPI_%d", i)
		_, err := v.product(key, build(key))
		require.NoError(t, err)
	}
	p, err := v.product("CAPPI_0", build("CAPPI_0"))
	require.NoError(t, err)

	assert.Equal(t, "CAPPI_0", p.Name)
	assert.Equal(t, 1, builds["CAPPI_0"], "first key is served from the cache")
	assert.Equal(t, 17, v.CachedProducts())
}

func TestProduct_ErrorNotCached(t *testing.T) {
	v := &Volume{}
	calls := 0
	failing := func() (Product, error) {
		calls++
		return Product{}, errors.New("no sweeps")
	}

	_, err := v.product("CR", failing)
	require.Error(t, err)
	assert.Equal(t, 0, v.CachedProducts())

	p, err := v.product("CR", func() (Product, error) {
		calls++
		return Product{Name: "CR"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "CR", p.Name)
	assert.Equal(t, 2, calls)
}

func TestProduct_MissingMomentSkipsCache(t *testing.T) {
	v := &Volume{}
	_, err := v.CompositeReflectivity([]float64{0}, []float64{0}, grid.Options{})
	require.ErrorIs(t, err, ErrMomentNotFound)
	assert.Equal(t, 0, v.CachedProducts())
}

func TestProduct_ConcurrentSingleBuild(t *testing.T) {
	v := &Volume{}
	var mu sync.Mutex
	calls := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.product("CR", func() (Product, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				return Product{Name: "CR"}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, v.CachedProducts())
}
