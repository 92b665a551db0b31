package csrf

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenfolio/auth-core/routes"
	"github.com/greenfolio/auth-core/token"
)

// Fetcher obtains a fresh token from the server (GET /api/auth/csrf).
type Fetcher interface {
	FetchCSRF(ctx context.Context) (*Issued, error)
}

// Renewer is the client-side companion to the token service: it fetches a
// token up front, keeps the token store's snapshot current, and re-fetches
// a fixed window before expiry. The pending timer is cancellable so
// teardown never acts on released state, and a manual renew always replaces
// (never stacks on) a scheduled one.
type Renewer struct {
	fetcher Fetcher
	store   *token.Store
	window  time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// RenewerOption configures a Renewer.
type RenewerOption func(*Renewer)

// WithRenewWindow overrides how long before expiry renewal fires.
func WithRenewWindow(d time.Duration) RenewerOption {
	return func(rn *Renewer) { rn.window = d }
}

// WithLogger sets the renewer's logger.
func WithLogger(l zerolog.Logger) RenewerOption {
	return func(rn *Renewer) { rn.logger = l }
}

// NewRenewer creates a renewer writing into the given token store.
func NewRenewer(fetcher Fetcher, store *token.Store, options ...RenewerOption) *Renewer {
	rn := &Renewer{
		fetcher: fetcher,
		store:   store,
		window:  RenewWindow,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(rn)
	}
	return rn
}

// Start fetches the initial token and schedules auto-renewal.
func (rn *Renewer) Start(ctx context.Context) error {
	return rn.Renew(ctx)
}

// Renew fetches a fresh token immediately, cancelling any pending scheduled
// renewal and rescheduling against the new expiry.
func (rn *Renewer) Renew(ctx context.Context) error {
	issued, err := rn.fetcher.FetchCSRF(ctx)
	if err != nil {
		return err
	}

	rn.mu.Lock()
	defer rn.mu.Unlock()
	if rn.stopped {
		return nil
	}

	rn.store.SetCSRF(issued.Token, issued.ExpiresAt)
	rn.scheduleLocked(issued.ExpiresAt)
	return nil
}

// Stop cancels any pending renewal. Safe to call more than once.
func (rn *Renewer) Stop() {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	rn.stopped = true
	if rn.timer != nil {
		rn.timer.Stop()
		rn.timer = nil
	}
}

func (rn *Renewer) scheduleLocked(expiresAt time.Time) {
	if rn.timer != nil {
		rn.timer.Stop()
	}
	delay := time.Until(expiresAt.Add(-rn.window))
	if delay < 0 {
		delay = 0
	}
	rn.timer = time.AfterFunc(delay, func() {
		if err := rn.Renew(context.Background()); err != nil {
			rn.logger.Warn().Err(err).Msg("csrf auto-renewal failed")
		}
	})
}

// Header injects the current token into a mutating request's headers.
// Non-mutating methods are left untouched.
func (rn *Renewer) Header(method string, h http.Header) {
	if !routes.IsMutatingMethod(method) {
		return
	}
	if csrfTok := rn.store.CSRF(); csrfTok.Token != "" {
		h.Set(HeaderName, csrfTok.Token)
	}
}
