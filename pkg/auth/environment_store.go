package auth

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvironmentStore reads the account from TC_EMAIL, TC_PASSWORD, SCHOOL and
// CHILD. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. A non-empty email must match.
func (e *EnvironmentStore) Retrieve(email string) (*Account, error) {
	account := &Account{
		Email:        os.Getenv("TC_EMAIL"),
		Password:     os.Getenv("TC_PASSWORD"),
		SchoolID:     envUint("SCHOOL"),
		ChildID:      envUint("CHILD"),
		LastModified: time.Now(),
	}
	if account.Validate() != nil {
		return nil, ErrCredentialsNotFound
	}
	if email != "" && !strings.EqualFold(email, account.Email) {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(email string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(email string) bool {
	_, err := e.Retrieve(email)
	return err == nil
}

func envUint(key string) uint64 {
	v, err := strconv.ParseUint(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
