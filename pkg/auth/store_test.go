package auth

import (
	"strings"
	"sync"
)

// memStore is an in-memory CredentialStore with injectable failures
type memStore struct {
	mu       sync.Mutex
	accounts map[string]Account

	storeErr error
	listErr  error
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]Account)}
}

func (m *memStore) Store(account *Account) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	if account == nil || account.Email == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[strings.ToLower(account.Email)] = *account
	return nil
}

func (m *memStore) Retrieve(email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[strings.ToLower(email)]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *memStore) List() ([]*Account, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*Account
	for _, account := range m.accounts {
		a := account
		list = append(list, &a)
	}
	return list, nil
}

func (m *memStore) Delete(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := m.accounts[key]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, key)
	return nil
}

func (m *memStore) Exists(email string) bool {
	_, err := m.Retrieve(email)
	return err == nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}
