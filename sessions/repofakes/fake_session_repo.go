package fakesessionrepo

import (
	"sync"
	"time"

	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	sessions map[string]*sessions.Session
	lock     sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{sessions: make(map[string]*sessions.Session)}
}

func (sr *FakeSessionRepo) Upsert(sessionID string, session *sessions.Session) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session.ID = sessionID
	sr.sessions[sessionID] = session
	return nil
}

func (sr *FakeSessionRepo) Get(sessionID string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	session, ok := sr.sessions[sessionID]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (sr *FakeSessionRepo) GetByUserID(userID string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	var latest *sessions.Session
	for _, session := range sr.sessions {
		if session.UserID != userID {
			continue
		}
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			latest = session
		}
	}
	if latest == nil {
		return nil, errors.ErrSessionNotFound
	}
	copied := *latest
	return &copied, nil
}

func (sr *FakeSessionRepo) Delete(sessionID string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if _, ok := sr.sessions[sessionID]; !ok {
		return errors.ErrSessionNotFound
	}
	delete(sr.sessions, sessionID)
	return nil
}

func (sr *FakeSessionRepo) DeleteExpired(before time.Time) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	for sessionID, session := range sr.sessions {
		if session.ExpiresAt.Before(before) {
			delete(sr.sessions, sessionID)
		}
	}
	return nil
}
