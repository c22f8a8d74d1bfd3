package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "xscraper"
	// keyringIndex holds the comma-separated handles with an entry, since
	// the system keychain cannot be enumerated
	keyringIndex = "accounts"
)

func keyringKey(handle string) string { return "account:" + handle }

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct {
	// mu serializes index read-modify-write
	mu sync.Mutex
}

// NewKeyringStore probes the keychain and fails when it is unusable, for
// example on a headless Linux box without a secret service
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Store(account *Account) error {
	handle := normalizeHandle(accountName(account))
	if handle == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := keyring.Set(keyringService, keyringKey(handle), string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	index := k.index()
	index[handle] = true
	return k.saveIndex(index)
}

func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	handle := normalizeHandle(username)
	if handle == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringKey(handle))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// List returns every indexed account. Index entries whose secret vanished
// are skipped.
func (k *KeyringStore) List() ([]*Account, error) {
	k.mu.Lock()
	index := k.index()
	k.mu.Unlock()

	handles := make([]string, 0, len(index))
	for h := range index {
		handles = append(handles, h)
	}
	sort.Strings(handles)

	accounts := make([]*Account, 0, len(handles))
	for _, h := range handles {
		if account, err := k.Retrieve(h); err == nil {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (k *KeyringStore) Delete(username string) error {
	handle := normalizeHandle(username)
	if handle == "" {
		return ErrInvalidCredentials
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	err := keyring.Delete(keyringService, keyringKey(handle))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	index := k.index()
	_, indexed := index[handle]
	delete(index, handle)
	if err := k.saveIndex(index); err != nil {
		return err
	}
	if err != nil && !indexed {
		return ErrCredentialsNotFound
	}
	return nil
}

func (k *KeyringStore) Exists(username string) bool {
	_, err := k.Retrieve(username)
	return err == nil
}

func (k *KeyringStore) index() map[string]bool {
	index := map[string]bool{}
	raw, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		return index
	}
	for _, h := range strings.Split(raw, ",") {
		if h != "" {
			index[h] = true
		}
	}
	return index
}

func (k *KeyringStore) saveIndex(index map[string]bool) error {
	if len(index) == 0 {
		err := keyring.Delete(keyringService, keyringIndex)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to update keyring index: %w", err)
		}
		return nil
	}
	handles := make([]string, 0, len(index))
	for h := range index {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	if err := keyring.Set(keyringService, keyringIndex, strings.Join(handles, ",")); err != nil {
		return fmt.Errorf("failed to update keyring index: %w", err)
	}
	return nil
}
