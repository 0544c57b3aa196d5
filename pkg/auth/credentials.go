package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"tcphotos/pkg/config"
)

// Account holds the portal sign-in for one parent and the child they follow
type Account struct {
	Email        string    `json:"email"`
	Password     string    `json:"password"`
	SchoolID     uint64    `json:"school_id"`
	ChildID      uint64    `json:"child_id"`
	LastModified time.Time `json:"last_modified"`
}

// Validate checks the fields needed to sign in
func (a *Account) Validate() error {
	if a == nil || strings.TrimSpace(a.Email) == "" {
		return errors.New("email is required")
	}
	if a.Password == "" {
		return errors.New("password is required")
	}
	if a.SchoolID == 0 {
		return errors.New("school ID is required")
	}
	if a.ChildID == 0 {
		return errors.New("child ID is required")
	}
	return nil
}

// Apply copies the account into cfg. Fields already set in cfg win.
func (a *Account) Apply(cfg *config.Config) {
	if cfg.Portal.Email == "" {
		cfg.Portal.Email = a.Email
	}
	if cfg.Portal.Password == "" {
		cfg.Portal.Password = a.Password
	}
	if cfg.Portal.SchoolID == 0 {
		cfg.Portal.SchoolID = a.SchoolID
	}
	if cfg.Portal.ChildID == 0 {
		cfg.Portal.ChildID = a.ChildID
	}
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for a given account
	Store(account *Account) error

	// Retrieve gets credentials for a specific email
	Retrieve(email string) (*Account, error)

	// List returns all stored accounts
	List() ([]*Account, error)

	// Delete removes credentials for a specific email
	Delete(email string) error

	// Exists checks if credentials exist for an email
	Exists(email string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager backed by the system keychain when
// available, then the file vault in the application directory, then the
// environment
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	vault, err := OpenFileVault(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials file: %w", err)
	}
	stores = append(stores, vault, NewEnvironmentStore())

	return NewManagerWithStores(stores...), nil
}

// NewManagerWithStores creates a manager that tries stores in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials using the first store that accepts them
func (m *Manager) Store(account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(email string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(email); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for %s: %w", email, ErrCredentialsNotFound)
}

// RetrieveDefault prefers credentials from the environment, then the most
// recently modified stored account
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if envStore, ok := store.(*EnvironmentStore); ok {
			if account, err := envStore.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err == nil && len(accounts) > 0 {
		return accounts[0], nil
	}

	return nil, ErrCredentialsNotFound
}

// List returns all stored accounts, newest first
func (m *Manager) List() ([]*Account, error) {
	byEmail := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byEmail[account.Email]; !ok || account.LastModified.After(existing.LastModified) {
				byEmail[account.Email] = account
			}
		}
	}

	result := make([]*Account, 0, len(byEmail))
	for _, account := range byEmail {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].Email < result[j].Email
		}
		return result[i].LastModified.After(result[j].LastModified)
	})

	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(email string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(email); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for %s: %w", email, ErrCredentialsNotFound)
	}

	return nil
}

// DeleteAll removes all stored credentials
func (m *Manager) DeleteAll() error {
	accounts, err := m.List()
	if err != nil {
		return err
	}

	for _, account := range accounts {
		_ = m.Delete(account.Email)
	}

	return nil
}

// SanitizeAccount returns a copy safe to print
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	return &Account{
		Email:        account.Email,
		Password:     maskString(account.Password),
		SchoolID:     account.SchoolID,
		ChildID:      account.ChildID,
		LastModified: account.LastModified,
	}
}

// maskString masks all but the first 2 and last 2 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:2] + "..." + s[len(s)-2:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
