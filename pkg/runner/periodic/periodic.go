package periodic

import (
	"time"

	"github.com/coapclient/go-coap/pkg/sync"
	"go.uber.org/atomic"
)

// Func registers f to run on every tick until f returns false.
type Func = func(f func(now time.Time) bool)

// New starts a ticker goroutine that stops when stop is closed.
func New(stop <-chan struct{}, tick time.Duration) Func {
	var idx atomic.Uint64
	jobs := sync.NewMap[uint64, func(time.Time) bool]()
	go func() {
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			var now time.Time
			select {
			case now = <-t.C:
			case <-stop:
				return
			}
			jobs.Range(func(id uint64, f func(time.Time) bool) bool {
				if !f(now) {
					jobs.Delete(id)
				}
				return true
			})
		}
	}()
	return func(f func(time.Time) bool) {
		if f == nil {
			return
		}
		jobs.Store(idx.Inc(), f)
	}
}
