package auth

import (
	"sort"
	"sync"
)

// MemoryStore is an in-process CredentialStore. Tests use it with the
// injected errors; embedders use it to pass an account without touching disk.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account

	StoreError error
	ListError  error
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: map[string]Account{}}
}

func (m *MemoryStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	handle := normalizeHandle(accountName(account))
	if handle == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	m.accounts[handle] = *account
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Retrieve(username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[normalizeHandle(username)]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *MemoryStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *MemoryStore) Delete(username string) error {
	handle := normalizeHandle(username)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[handle]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, handle)
	return nil
}

func (m *MemoryStore) Exists(username string) bool {
	_, err := m.Retrieve(username)
	return err == nil
}

// Len returns the number of stored accounts
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
