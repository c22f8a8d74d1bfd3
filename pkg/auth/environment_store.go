package auth

import (
	"os"
	"time"
)

const (
	envUsername = "XSCRAPER_USERNAME"
	envPassword = "XSCRAPER_PASSWORD"
	envEmail    = "XSCRAPER_EMAIL"
)

// EnvironmentStore implements CredentialStore on top of XSCRAPER_USERNAME,
// XSCRAPER_PASSWORD and the optional XSCRAPER_EMAIL. It is read only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. A non-empty username must match it.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	user, pass := os.Getenv(envUsername), os.Getenv(envPassword)
	if user == "" || pass == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && normalizeHandle(username) != normalizeHandle(user) {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     user,
		Password:     pass,
		Email:        os.Getenv(envEmail),
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for username
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
