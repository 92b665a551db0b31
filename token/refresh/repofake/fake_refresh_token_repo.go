package fakerefreshrepo

import (
	"sync"

	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.StoredRefreshToken
	lock   sync.RWMutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{tokens: make(map[string]*refresh.StoredRefreshToken)}
}

func (rr *FakeRefreshTokenRepo) Upsert(refreshToken *refresh.StoredRefreshToken) error {
	rr.lock.Lock()
	defer rr.lock.Unlock()

	rr.tokens[refreshToken.Token] = refreshToken
	return nil
}

func (rr *FakeRefreshTokenRepo) Delete(token string) error {
	rr.lock.Lock()
	defer rr.lock.Unlock()

	delete(rr.tokens, token)
	return nil
}

func (rr *FakeRefreshTokenRepo) Get(token string) (*refresh.StoredRefreshToken, error) {
	rr.lock.RLock()
	defer rr.lock.RUnlock()

	stored, ok := rr.tokens[token]
	if !ok {
		return nil, errors.ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (rr *FakeRefreshTokenRepo) GetByUserID(userID string) (*refresh.StoredRefreshToken, error) {
	rr.lock.RLock()
	defer rr.lock.RUnlock()

	for _, stored := range rr.tokens {
		if stored.UserID == userID {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, errors.ErrNotFound
}
