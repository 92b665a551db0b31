package token_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/greenfolio/auth-core/token"
)

func TestSetPairReplacesWholesale(t *testing.T) {
	store := token.NewStore()

	store.SetPair(token.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"})
	store.SetPair(token.Pair{AccessToken: "access-2"})

	// Replacing with a pair missing the refresh token must not keep the old
	// one around.
	require.Equal(t, "access-2", store.AccessToken())
	require.Empty(t, store.RefreshToken())
}

func TestClearWipesAllState(t *testing.T) {
	store := token.NewStore()
	store.SetPair(token.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"})
	store.SetCSRF("csrf-1", time.Now().Add(time.Hour))

	store.Clear()

	require.Empty(t, store.AccessToken())
	require.Empty(t, store.RefreshToken())
	require.Empty(t, store.CSRF().Token)
	require.True(t, store.CSRF().ExpiresAt.IsZero())
}

func TestConcurrentReadersSeeConsistentPairs(t *testing.T) {
	store := token.NewStore()
	pairs := []token.Pair{
		{AccessToken: "access-1", RefreshToken: "refresh-1"},
		{AccessToken: "access-2", RefreshToken: "refresh-2"},
	}

	store.SetPair(pairs[0])

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				store.SetPair(pairs[i%2])
			}
		}
	}()

	// A reader must never observe a torn pair mixing the two writes.
	for i := 0; i < 1000; i++ {
		got := store.Pair()
		require.Contains(t, pairs, got)
	}
	close(stop)
	wg.Wait()
}
