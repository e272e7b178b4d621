package ports

import "context"

// User is the subset of account data the order flow reads.
type User struct {
	ID    string
	Name  string
	Email string
}

// UserDirectory is a read-only lookup used to fill customer identity fields
// when the shipping address does not carry them. A nil user with a nil error
// means the account is unknown; the caller falls back to defaults.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
