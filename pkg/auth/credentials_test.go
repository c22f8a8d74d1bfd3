package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestManagerLifecycle(t *testing.T) {
	store := NewMemoryStore()
	manager := NewManagerWithStores(store)

	account := &Account{Username: "jack", Password: "correct horse battery"}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())

	got, err := manager.Retrieve("jack")
	require.NoError(t, err)
	assert.Equal(t, "correct horse battery", got.Password)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, manager.Delete("jack"))
	_, err = manager.Retrieve("jack")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestManagerStoreValidates(t *testing.T) {
	manager := NewManagerWithStores(NewMemoryStore())

	assert.Error(t, manager.Store(&Account{Password: "p"}))
	assert.Error(t, manager.Store(&Account{Username: "u"}))
	assert.Error(t, manager.Store(nil))
}

func TestManagerFallsThroughStores(t *testing.T) {
	broken := NewMemoryStore()
	broken.StoreError = errors.New("locked")
	working := NewMemoryStore()

	manager := NewManagerWithStores(broken, working)
	require.NoError(t, manager.Store(&Account{Username: "a", Password: "b"}))

	assert.Equal(t, 0, broken.Len())
	assert.Equal(t, 1, working.Len())
}

func TestResolvePrefersEnvironment(t *testing.T) {
	t.Setenv(envUsername, "envuser")
	t.Setenv(envPassword, "envpass")

	stored := NewMemoryStore()
	require.NoError(t, stored.Store(&Account{Username: "aaa", Password: "x"}))
	manager := NewManagerWithStores(stored, NewEnvironmentStore())

	def, err := manager.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "envuser", def.Username)

	named, err := manager.Resolve("aaa")
	require.NoError(t, err)
	assert.Equal(t, "x", named.Password)
}

func TestRetrieveDefaultWithoutAccounts(t *testing.T) {
	t.Setenv(envUsername, "")
	t.Setenv(envPassword, "")

	manager := NewManagerWithStores(NewMemoryStore(), NewEnvironmentStore())
	_, err := manager.RetrieveDefault()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestSanitizeAccount(t *testing.T) {
	s := SanitizeAccount(&Account{Username: "jack", Password: "supersecretpw", Email: "j@x.com"})

	assert.Equal(t, "jack", s.Username)
	assert.Equal(t, "su...pw", s.Password)
	assert.Equal(t, "j@x.com", s.Email)
	assert.Equal(t, "********", SanitizeAccount(&Account{Password: "short"}).Password)
	assert.Nil(t, SanitizeAccount(nil))
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv("XSCRAPER_PASSPHRASE", "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "creds.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Username: "enc_user", Password: "plaintext_password"}))

	got, err := store.Retrieve("enc_user")
	require.NoError(t, err)
	assert.Equal(t, "plaintext_password", got.Password)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, []byte("plaintext_password")))

	require.NoError(t, store.Delete("enc_user"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(envUsername, "env_user")
	t.Setenv(envPassword, "env_pass")
	t.Setenv(envEmail, "env@example.com")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env_user", account.Username)
	assert.Equal(t, "env@example.com", account.Email)

	assert.True(t, store.Exists("env_user"))
	assert.False(t, store.Exists("someone_else"))
	assert.ErrorIs(t, store.Store(&Account{}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("env_user"), ErrStoreUnavailable)
}

func TestHandlesAreCaseInsensitive(t *testing.T) {
	manager := NewManagerWithStores(NewMemoryStore())
	require.NoError(t, manager.Store(&Account{Username: "Jack", Password: "pw"}))

	got, err := manager.Retrieve("@jack")
	require.NoError(t, err)
	assert.Equal(t, "Jack", got.Username)

	require.NoError(t, manager.Delete("JACK"))
	_, err = manager.Retrieve("jack")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreRejectsWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.enc")

	t.Setenv(PassphraseEnv, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "a", Password: "b"}))

	t.Setenv(PassphraseEnv, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("a")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreKeepsSaltAcrossWrites(t *testing.T) {
	t.Setenv(PassphraseEnv, "pass")
	path := filepath.Join(t.TempDir(), "creds.enc")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Username: "one", Password: "1"}))
	require.NoError(t, store.Store(&Account{Username: "two", Password: "2"}))

	// a fresh store derives the key from the persisted salt
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	accounts, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestKeyringStoreIndexesAccounts(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "zed", Password: "1"}))
	require.NoError(t, store.Store(&Account{Username: "Amy", Password: "2"}))

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Amy", accounts[0].Username)
	assert.Equal(t, "zed", accounts[1].Username)

	require.NoError(t, store.Delete("amy"))
	assert.False(t, store.Exists("Amy"))
	assert.ErrorIs(t, store.Delete("nobody"), ErrCredentialsNotFound)

	accounts, err = store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}
