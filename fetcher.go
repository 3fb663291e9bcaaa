package worker

import (
	"context"
	"net/http"
)

// Fetcher issues outbound HTTP exchanges through a host fetch channel:
// the global outbound network or a service binding to another worker.
type Fetcher struct {
	backend *Guard[FetchBackend]
	sched   Scheduler
}

// NewFetcher wraps a fetch backend. Call on the event-loop goroutine.
func NewFetcher(b FetchBackend, sched Scheduler) *Fetcher {
	return &Fetcher{backend: Wrap(b), sched: sched}
}

// Fetch starts the exchange and returns a promise for the response. The
// exchange proceeds whether or not the promise is ever awaited.
func (f *Fetcher) Fetch(req *Request) *Promise[*Response] {
	native, err := FromRequest(req)
	if err != nil {
		return Rejected[*Response](err)
	}
	return NewPromise(func(resolve func(*Response), reject func(error)) {
		err := f.sched(func() {
			b, err := f.backend.Get()
			if err != nil {
				reject(err)
				return
			}
			b.Fetch(native, func(nr *NativeResponse, err error) {
				if err != nil {
					reject(err)
					return
				}
				resolve(ToResponse(nr))
			})
		})
		if err != nil {
			reject(err)
		}
	})
}

// Get is a convenience for a bodyless GET exchange.
func (f *Fetcher) Get(ctx context.Context, url string) (*Response, error) {
	return f.Fetch(NewRequest(http.MethodGet, url)).Await(ctx)
}
