// Package toml stores credit balances in a single TOML file, one record per
// session.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	PathKey         = "storage.path"
	creditsFileMode = 0o600
	creditsDirMode  = 0o700
	creditsDir      = ".afkguard"
	creditsFile     = "credits.toml"
	tempFilePattern = ".credits-*.toml.tmp"
)

type Store struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.CreditStore = (*Store)(nil)

// NewStore resolves the file from the storage.path key, defaulting to
// ~/.afkguard/credits.toml.
func NewStore(cfg *viper.Viper) (*Store, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(PathKey, filepath.Join(homeDir, creditsDir, creditsFile))

	path := cfg.GetString(PathKey)
	if path == "" {
		return nil, errors.New("credits path is empty")
	}
	path, err = normalizePath(path)
	if err != nil {
		return nil, err
	}

	return &Store{path: path, mu: lockForPath(path)}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) LoadAll(ctx context.Context) (map[domain.SessionID]domain.CreditAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return nil, err
	}

	accounts := make(map[domain.SessionID]domain.CreditAccount, len(file.Accounts))
	for _, entry := range file.Accounts {
		account := fromSchema(entry)
		accounts[account.SessionID] = account
	}

	return accounts, nil
}

// SaveAll merges accounts into the file. Records for other sessions are kept.
func (s *Store) SaveAll(ctx context.Context, accounts map[domain.SessionID]domain.CreditAccount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(accounts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}

	merged := make(map[string]accountSchema, len(file.Accounts)+len(accounts))
	for _, entry := range file.Accounts {
		merged[entry.ID] = entry
	}
	for id, account := range accounts {
		account.SessionID = id
		merged[string(id)] = toSchema(account)
	}

	file.Accounts = file.Accounts[:0]
	for _, entry := range merged {
		file.Accounts = append(file.Accounts, entry)
	}
	sort.Slice(file.Accounts, func(i, j int) bool { return file.Accounts[i].ID < file.Accounts[j].ID })

	if err := ctx.Err(); err != nil {
		return err
	}

	return s.writeSchema(file)
}

func (s *Store) SaveOne(ctx context.Context, account domain.CreditAccount) error {
	return s.SaveAll(ctx, map[domain.SessionID]domain.CreditAccount{account.SessionID: account})
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read credits file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode credits file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve credits path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (s *Store) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.path), creditsDirMode); err != nil {
		return fmt.Errorf("create credits directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode credits file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp credits file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp credits file: %w", err)
	}

	if err := tempFile.Chmod(creditsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp credits file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp credits file: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace credits file: %w", err)
	}

	cleanup = false
	return nil
}
