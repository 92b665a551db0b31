package fakeuserrepo

import (
	"sort"
	"strings"
	"sync"

	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users map[string]*users.User
	lock  sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{users: make(map[string]*users.User)}
}

func (ur *FakeUserRepo) Create(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.users[user.ID] = user
	return nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	for _, user := range ur.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (ur *FakeUserRepo) List(filter users.ListFilter) ([]*users.User, int, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	matched := make([]*users.User, 0)
	for _, user := range ur.users {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if filter.Status != "" && user.Status != filter.Status {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(user.Email), needle) &&
				!strings.Contains(strings.ToLower(user.DisplayName), needle) {
				continue
			}
		}
		copied := *user
		matched = append(matched, &copied)
	}

	// Stable ordering for paging
	sort.Slice(matched, func(i, j int) bool { return matched[i].Email < matched[j].Email })

	total := len(matched)
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= total {
		return []*users.User{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (ur *FakeUserRepo) Update(id string, updates users.Updates) (*users.User, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	if updates.Role != nil {
		user.Role = *updates.Role
	}
	if updates.Status != nil {
		user.Status = *updates.Status
	}
	if updates.DisplayName != nil {
		user.DisplayName = *updates.DisplayName
	}
	copied := *user
	return &copied, nil
}
