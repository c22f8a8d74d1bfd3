package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	vaultVersion    = 2
	vaultSaltSize   = 32
	vaultKeySize    = 32
	vaultIterations = 100000

	// PassphraseEnv overrides the generated vault key file
	PassphraseEnv = "XSCRAPER_PASSPHRASE"
)

// vaultFile is the on-disk envelope. Sealed holds nonce||ciphertext of the
// JSON-encoded account map.
type vaultFile struct {
	Version  int       `json:"version"`
	Salt     string    `json:"salt"`
	Sealed   string    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// sealer derives the AES-GCM key once per salt
type sealer struct {
	salt []byte
	aead cipher.AEAD
}

func newSealer(passphrase string, salt []byte) (*sealer, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, vaultIterations, vaultKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &sealer{salt: salt, aead: aead}, nil
}

func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("sealed data too short")
	}
	return s.aead.Open(nil, sealed[:n], sealed[n:], nil)
}

// EncryptedFileStore keeps every account in one AES-GCM sealed file. The key
// is derived with PBKDF2 from XSCRAPER_PASSPHRASE or a generated key file
// next to the vault.
type EncryptedFileStore struct {
	path       string
	passphrase string

	mu     sync.Mutex
	sealer *sealer
}

// NewEncryptedFileStore opens (without reading) the vault at path
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}
	passphrase, err := vaultPassphrase(filepath.Join(filepath.Dir(path), "vault.key"))
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Store(account *Account) error {
	key := normalizeHandle(accountName(account))
	if key == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	accounts, err := e.read()
	if err != nil {
		return err
	}
	accounts[key] = *account
	return e.write(accounts)
}

func (e *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	key := normalizeHandle(username)
	if key == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	accounts, err := e.read()
	if err != nil {
		return nil, err
	}
	account, ok := accounts[key]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	accounts, err := e.read()
	if err != nil {
		return nil, err
	}
	out := make([]*Account, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, &a)
	}
	return out, nil
}

// Delete removes username; the vault file goes away with its last account
func (e *EncryptedFileStore) Delete(username string) error {
	key := normalizeHandle(username)
	if key == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	accounts, err := e.read()
	if err != nil {
		return err
	}
	if _, ok := accounts[key]; !ok {
		return ErrCredentialsNotFound
	}
	delete(accounts, key)
	if len(accounts) == 0 {
		return os.Remove(e.path)
	}
	return e.write(accounts)
}

func (e *EncryptedFileStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}

// read returns the decrypted accounts, or an empty map when no vault exists
func (e *EncryptedFileStore) read() (map[string]Account, error) {
	raw, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return map[string]Account{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vault: %w", err)
	}

	var file vaultFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse vault: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(file.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vault: %w", err)
	}

	s, err := e.sealerFor(salt)
	if err != nil {
		return nil, err
	}
	plain, err := s.open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt vault (wrong %s?): %w", PassphraseEnv, err)
	}

	accounts := map[string]Account{}
	if err := json.Unmarshal(plain, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts: %w", err)
	}
	return accounts, nil
}

func (e *EncryptedFileStore) write(accounts map[string]Account) error {
	s := e.sealer
	if s == nil {
		salt := make([]byte, vaultSaltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
		var err error
		if s, err = e.sealerFor(salt); err != nil {
			return err
		}
	}

	plain, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}
	sealed, err := s.seal(plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt vault: %w", err)
	}

	content, err := json.MarshalIndent(vaultFile{
		Version:  vaultVersion,
		Salt:     base64.StdEncoding.EncodeToString(s.salt),
		Sealed:   base64.StdEncoding.EncodeToString(sealed),
		Modified: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	return os.Rename(tmp, e.path)
}

// sealerFor reuses the cached sealer while the salt is unchanged
func (e *EncryptedFileStore) sealerFor(salt []byte) (*sealer, error) {
	if e.sealer != nil && string(e.sealer.salt) == string(salt) {
		return e.sealer, nil
	}
	s, err := newSealer(e.passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}
	e.sealer = s
	return s, nil
}

// vaultPassphrase returns XSCRAPER_PASSPHRASE, or the contents of keyFile,
// creating it with random bytes on first use
func vaultPassphrase(keyFile string) (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}
	if content, err := os.ReadFile(keyFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate vault key: %w", err)
	}
	pass := base64.RawURLEncoding.EncodeToString(b)
	if err := os.WriteFile(keyFile, []byte(pass), 0600); err != nil {
		return "", fmt.Errorf("failed to save vault key: %w", err)
	}
	return pass, nil
}
