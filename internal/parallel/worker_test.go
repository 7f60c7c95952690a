package parallel_test

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/paveg/sectorcast/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	pool := parallel.NewWorkerPool(0)
	defer pool.Close()
	assert.Equal(t, runtime.NumCPU(), pool.Workers())

	pool2 := parallel.NewWorkerPool(4)
	defer pool2.Close()
	assert.Equal(t, 4, pool2.Workers())

	pool3 := parallel.NewWorkerPool(-1)
	defer pool3.Close()
	assert.Equal(t, runtime.NumCPU(), pool3.Workers())
}

func TestProcessIndexedKeepsOrder(t *testing.T) {
	pool := parallel.NewWorkerPool(3)
	defer pool.Close()

	columns := []string{"nht_price", "pht_area", "lt_volume", "ci_gdp", "sp_poi"}
	results, err := parallel.ProcessIndexed(context.Background(), pool, columns,
		func(_ context.Context, i int, name string) (string, error) {
			if i%2 == 0 {
				runtime.Gosched()
			}
			return name + "_mean3", nil
		})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"nht_price_mean3", "pht_area_mean3", "lt_volume_mean3", "ci_gdp_mean3", "sp_poi_mean3",
	}, results)
}

func TestProcessIndexedEmpty(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	results, err := parallel.ProcessIndexed(context.Background(), pool, []int{},
		func(_ context.Context, _ int, x int) (int, error) { return x, nil })
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestProcessIndexedFirstErrorWins(t *testing.T) {
	pool := parallel.NewWorkerPool(1)
	defer pool.Close()

	boom := errors.New("boom")
	var calls atomic.Int32

	_, err := parallel.ProcessIndexed(context.Background(), pool, []int{1, 2, 3, 4},
		func(_ context.Context, _ int, x int) (int, error) {
			calls.Add(1)
			if x == 2 {
				return 0, boom
			}
			return x, nil
		})
	require.ErrorIs(t, err, boom)
	assert.LessOrEqual(t, calls.Load(), int32(3))
}

func TestProcessIndexedCancelled(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := parallel.ProcessIndexed(ctx, pool, []int{1, 2, 3},
		func(_ context.Context, _ int, x int) (int, error) { return x, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessIndexedClosedPool(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	pool.Close()

	_, err := parallel.ProcessIndexed(context.Background(), pool, []int{1, 2, 3},
		func(_ context.Context, _ int, x int) (int, error) { return x, nil })
	assert.ErrorIs(t, err, context.Canceled)
}
