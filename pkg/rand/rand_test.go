package rand_test

import (
	"sync"
	"testing"

	"github.com/coapclient/go-coap/pkg/rand"
	"github.com/stretchr/testify/require"
)

func TestRandIsReproducible(t *testing.T) {
	a := rand.NewRand(42)
	b := rand.NewRand(42)
	require.Equal(t, a.Uint32(), b.Uint32())
	require.Equal(t, a.Float64(), b.Float64())

	bufA := make([]byte, 8)
	bufB := make([]byte, 8)
	n, err := a.Read(bufA)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	_, err = b.Read(bufB)
	require.NoError(t, err)
	require.Equal(t, bufA, bufB)

	f := a.Float64()
	require.GreaterOrEqual(t, f, 0.0)
	require.Less(t, f, 1.0)
}

func TestMultiThreadedRand(*testing.T) {
	r := rand.NewTimeSeeded()
	var done sync.WaitGroup
	for i := 0; i < 100; i++ {
		done.Add(1)
		go func(index int) {
			defer done.Done()
			switch index % 3 {
			case 0:
				_ = r.Uint32()
			case 1:
				_ = r.Float64()
			default:
				_, _ = r.Read(make([]byte, 4))
			}
		}(i)
	}
	done.Wait()
}
