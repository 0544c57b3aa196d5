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
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
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
	PassphraseEnv = "TC_PASSPHRASE"

	vaultFileName = "credentials.enc"
	vaultKeyName  = "credentials.key"
)

var errVaultVersion = errors.New("unsupported credentials file version")

// FileVault keeps portal accounts in one AES-GCM sealed file. The passphrase
// comes from TC_PASSPHRASE or a key file generated beside the vault.
type FileVault struct {
	path       string
	passphrase string

	mu sync.Mutex
	// key caches the derived key for salt
	salt []byte
	key  []byte
}

// vaultFile is the on-disk envelope
type vaultFile struct {
	Version    int       `json:"version"`
	Iterations int       `json:"iterations"`
	Salt       string    `json:"salt"`
	Sealed     string    `json:"sealed"`
	Modified   time.Time `json:"modified"`
}

// vaultContents is the sealed payload
type vaultContents struct {
	Accounts []Account `json:"accounts"`
}

// OpenFileVault opens the vault in dir, creating dir if needed. Nothing is
// written until the first Store.
func OpenFileVault(dir string) (*FileVault, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	v := &FileVault{path: filepath.Join(dir, vaultFileName)}
	passphrase, err := vaultPassphrase(filepath.Join(dir, vaultKeyName))
	if err != nil {
		return nil, err
	}
	v.passphrase = passphrase
	return v, nil
}

// Path returns the sealed file location
func (v *FileVault) Path() string {
	return v.path
}

func (v *FileVault) Store(account *Account) error {
	if err := account.Validate(); err != nil {
		return ErrInvalidCredentials
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	accounts, err := v.load()
	if err != nil {
		return err
	}
	accounts[strings.ToLower(account.Email)] = *account
	return v.save(accounts)
}

func (v *FileVault) Retrieve(email string) (*Account, error) {
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	accounts, err := v.load()
	if err != nil {
		return nil, err
	}
	account, ok := accounts[strings.ToLower(email)]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns the stored accounts ordered by email
func (v *FileVault) List() ([]*Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	accounts, err := v.load()
	if err != nil {
		return nil, err
	}
	list := make([]*Account, 0, len(accounts))
	for _, account := range accounts {
		a := account
		list = append(list, &a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Email < list[j].Email })
	return list, nil
}

// Delete removes one account. Removing the last one removes the file.
func (v *FileVault) Delete(email string) error {
	if email == "" {
		return ErrInvalidCredentials
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	accounts, err := v.load()
	if err != nil {
		return err
	}
	key := strings.ToLower(email)
	if _, ok := accounts[key]; !ok {
		return ErrCredentialsNotFound
	}
	delete(accounts, key)

	if len(accounts) == 0 {
		if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials file: %w", err)
		}
		return nil
	}
	return v.save(accounts)
}

func (v *FileVault) Exists(email string) bool {
	_, err := v.Retrieve(email)
	return err == nil
}

// load returns the accounts keyed by lowercase email. A missing file is an
// empty vault.
func (v *FileVault) load() (map[string]Account, error) {
	accounts := make(map[string]Account)

	raw, err := os.ReadFile(v.path)
	if os.IsNotExist(err) {
		return accounts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var file vaultFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if file.Version != vaultVersion {
		return nil, fmt.Errorf("%w: %d", errVaultVersion, file.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(file.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}

	plain, err := open(v.deriveKey(salt, file.Iterations), salt, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials (wrong %s?): %w", PassphraseEnv, err)
	}

	var contents vaultContents
	if err := json.Unmarshal(plain, &contents); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	for _, account := range contents.Accounts {
		accounts[strings.ToLower(account.Email)] = account
	}
	return accounts, nil
}

// save seals accounts under a fresh salt and replaces the file atomically
func (v *FileVault) save(accounts map[string]Account) error {
	contents := vaultContents{Accounts: make([]Account, 0, len(accounts))}
	for _, account := range accounts {
		contents.Accounts = append(contents.Accounts, account)
	}
	sort.Slice(contents.Accounts, func(i, j int) bool {
		return contents.Accounts[i].Email < contents.Accounts[j].Email
	})

	plain, err := json.Marshal(contents)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	salt := make([]byte, vaultSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	sealed, err := seal(v.deriveKey(salt, vaultIterations), salt, plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	out, err := json.MarshalIndent(vaultFile{
		Version:    vaultVersion,
		Iterations: vaultIterations,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Sealed:     base64.StdEncoding.EncodeToString(sealed),
		Modified:   time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials file: %w", err)
	}

	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

func (v *FileVault) deriveKey(salt []byte, iterations int) []byte {
	if v.key != nil && string(v.salt) == string(salt) {
		return v.key
	}
	if iterations <= 0 {
		iterations = vaultIterations
	}
	v.salt = append([]byte(nil), salt...)
	v.key = pbkdf2.Key([]byte(v.passphrase), salt, iterations, vaultKeySize, sha256.New)
	return v.key
}

// vaultPassphrase reads TC_PASSPHRASE, or the key file at keyPath, creating
// it with random contents on first use
func vaultPassphrase(keyPath string) (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}

	if data, err := os.ReadFile(keyPath); err == nil {
		if pass := strings.TrimSpace(string(data)); pass != "" {
			return pass, nil
		}
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate vault key: %w", err)
	}
	pass := base64.RawURLEncoding.EncodeToString(b)
	if err := os.WriteFile(keyPath, []byte(pass+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to save vault key: %w", err)
	}
	return pass, nil
}

// seal encrypts plain with AES-GCM, binding the salt as additional data
func seal(key, salt, plain []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, salt), nil
}

func open(key, salt, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealed data too short")
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, salt)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
