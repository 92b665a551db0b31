package csrf_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/greenfolio/auth-core/csrf"
	"github.com/greenfolio/auth-core/token"
)

type fakeFetcher struct {
	calls int32
	ttl   time.Duration
}

func (f *fakeFetcher) FetchCSRF(context.Context) (*csrf.Issued, error) {
	n := atomic.AddInt32(&f.calls, 1)
	return &csrf.Issued{
		Token:     "csrf-" + string(rune('a'+n-1)),
		ExpiresAt: time.Now().Add(f.ttl),
	}, nil
}

func (f *fakeFetcher) fetchCount() int32 {
	return atomic.LoadInt32(&f.calls)
}

func TestRenewerStartFetchesAndStores(t *testing.T) {
	fetcher := &fakeFetcher{ttl: time.Hour}
	store := token.NewStore()
	renewer := csrf.NewRenewer(fetcher, store)
	defer renewer.Stop()

	require.NoError(t, renewer.Start(context.Background()))
	require.Equal(t, int32(1), fetcher.fetchCount())
	require.Equal(t, "csrf-a", store.CSRF().Token)
}

func TestRenewerAutoRenewsBeforeExpiry(t *testing.T) {
	// Token expires in 50ms with a 40ms renew window: the scheduled renewal
	// fires ~10ms in.
	fetcher := &fakeFetcher{ttl: 50 * time.Millisecond}
	store := token.NewStore()
	renewer := csrf.NewRenewer(fetcher, store, csrf.WithRenewWindow(40*time.Millisecond))
	defer renewer.Stop()

	require.NoError(t, renewer.Start(context.Background()))

	deadline := time.Now().Add(2 * time.Second)
	for fetcher.fetchCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.GreaterOrEqual(t, fetcher.fetchCount(), int32(2), "scheduled renewal never fired")
	require.NotEqual(t, "csrf-a", store.CSRF().Token)
}

func TestManualRenewReplacesScheduledRenewal(t *testing.T) {
	fetcher := &fakeFetcher{ttl: 60 * time.Millisecond}
	store := token.NewStore()
	renewer := csrf.NewRenewer(fetcher, store, csrf.WithRenewWindow(30*time.Millisecond))
	defer renewer.Stop()

	// Start schedules a renewal ~30ms out. The manual renew must cancel that
	// timer before scheduling its own; Stop then cancels the replacement. If
	// either timer survives it fires within the sleep and fetches again.
	require.NoError(t, renewer.Start(context.Background()))
	require.NoError(t, renewer.Renew(context.Background()))
	renewer.Stop()

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(2), fetcher.fetchCount(), "a cancelled timer still fired")
}

func TestStopCancelsPendingRenewalAndIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{ttl: 30 * time.Millisecond}
	store := token.NewStore()
	renewer := csrf.NewRenewer(fetcher, store, csrf.WithRenewWindow(10*time.Millisecond))

	require.NoError(t, renewer.Start(context.Background()))
	renewer.Stop()
	renewer.Stop()

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), fetcher.fetchCount(), "renewal fired after Stop")
}

func TestRenewerHeaderInjection(t *testing.T) {
	fetcher := &fakeFetcher{ttl: time.Hour}
	store := token.NewStore()
	renewer := csrf.NewRenewer(fetcher, store)
	defer renewer.Stop()

	require.NoError(t, renewer.Start(context.Background()))

	h := http.Header{}
	renewer.Header(http.MethodPost, h)
	require.Equal(t, "csrf-a", h.Get(csrf.HeaderName))

	h = http.Header{}
	renewer.Header(http.MethodGet, h)
	require.Empty(t, h.Get(csrf.HeaderName))
}
