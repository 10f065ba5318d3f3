// Package config persists kmd settings as JSON under ~/.kmd.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/pkg/filesystem"
	"github.com/doeshing/kmd/internal/pkg/logging"
	"github.com/doeshing/kmd/internal/ports"
)

// Store loads and persists config.json (overridable via KMD_CONFIG) and
// keeps the in-memory snapshot every other component reads.
type Store struct {
	overridePath string
	logger       *zap.Logger

	mu      sync.RWMutex
	current domain.Configuration
	loaded  bool
}

// NewStore builds a store. An empty path means the default location.
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{
		overridePath: path,
		logger:       logging.NopIfNil(logger),
	}
}

// Load implements ports.ConfigStore. A missing file writes defaults before
// the first read; an unparseable file is backed up and regenerated. Neither
// case fails the call.
func (s *Store) Load() (domain.Configuration, error) {
	path := s.Path()
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return domain.Configuration{}, fmt.Errorf("create config dir: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := domain.DefaultConfiguration()
			if err := s.persist(path, cfg); err != nil {
				return domain.Configuration{}, err
			}
			s.logger.Info("config created with defaults", zap.String("path", path))
			s.swap(cfg)
			return cfg, nil
		}
		return domain.Configuration{}, fmt.Errorf("read config: %w", err)
	}

	var cfg domain.Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		recovered, recoverErr := s.recoverCorrupt(path, err)
		if recoverErr != nil {
			return domain.Configuration{}, recoverErr
		}
		s.swap(recovered)
		return recovered, nil
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		s.logger.Warn("config has invalid values, keeping them as written", zap.Error(err))
	}
	s.swap(cfg)
	return cfg, nil
}

// recoverCorrupt backs the broken file up next to the original and persists
// regenerated defaults. The corruption itself is never fatal.
func (s *Store) recoverCorrupt(path string, cause error) (domain.Configuration, error) {
	backup := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if err := os.Rename(path, backup); err != nil {
		return domain.Configuration{}, fmt.Errorf("back up corrupt config: %w", err)
	}
	corrupt := &domain.ConfigCorruptError{Path: path, BackupPath: backup, Err: cause}
	s.logger.Warn("config corrupt, regenerating defaults", zap.Error(corrupt))

	cfg := domain.DefaultConfiguration()
	if err := s.persist(path, cfg); err != nil {
		return domain.Configuration{}, err
	}
	return cfg, nil
}

// Snapshot implements ports.ConfigStore.
func (s *Store) Snapshot() domain.Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return domain.DefaultConfiguration()
	}
	return s.current
}

// Set implements ports.ConfigStore: validate, persist atomically, then swap
// the snapshot so the next submission sees the new value.
func (s *Store) Set(key, value string) (domain.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.current
	if !s.loaded {
		cfg = domain.DefaultConfiguration()
	}
	if err := cfg.SetValue(key, value); err != nil {
		return domain.Configuration{}, err
	}
	if err := s.persist(s.Path(), cfg); err != nil {
		return domain.Configuration{}, err
	}
	s.current = cfg
	s.loaded = true
	return cfg, nil
}

// Reload re-reads the file after an external edit (settings editor, hand
// edit). Unlike Load it never regenerates: a transient parse failure keeps
// the last good snapshot so a mid-write editor save cannot wipe settings.
func (s *Store) Reload() (domain.Configuration, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return s.Snapshot(), fmt.Errorf("reload config: %w", err)
	}
	var cfg domain.Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return s.Snapshot(), fmt.Errorf("reload config: %w", err)
	}
	cfg.Normalize()
	s.swap(cfg)
	return cfg, nil
}

// Path implements ports.ConfigStore.
func (s *Store) Path() string {
	if s.overridePath != "" {
		return s.overridePath
	}
	if custom := os.Getenv("KMD_CONFIG"); custom != "" {
		return filesystem.ExpandHome(custom)
	}
	return filepath.Join(filesystem.DataDir(), "config.json")
}

func (s *Store) swap(cfg domain.Configuration) {
	s.mu.Lock()
	s.current = cfg
	s.loaded = true
	s.mu.Unlock()
}

// persist writes via temp-file-then-rename so a crash mid-write can never
// corrupt the last good file.
func (s *Store) persist(path string, cfg domain.Configuration) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	raw = append(raw, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Chmod(tmpName, domain.SecureFilePermissions); err != nil {
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

var _ ports.ConfigStore = (*Store)(nil)
