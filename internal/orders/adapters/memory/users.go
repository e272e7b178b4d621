package memory

import (
	"context"
	"sync"

	"github.com/payflow/checkout/internal/orders/ports"
)

// UserDirectory is an in-memory user lookup for local development and tests.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]ports.User
}

func NewUserDirectory(users ...ports.User) *UserDirectory {
	d := &UserDirectory{users: make(map[string]ports.User, len(users))}
	for _, user := range users {
		d.users[user.ID] = user
	}
	return d
}

func (d *UserDirectory) GetByID(_ context.Context, id string) (*ports.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}
