// Package credential owns the scraping-service API key: layered resolution
// (persisted file, then process environment, then built-in fallback), updates, and masking.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
)

// EnvVar is the process environment layer of the credential.
const EnvVar = "PLEPER_API_KEY"

const (
	docKey       = "credential"
	legacyDocKey = "apiKey"
	lockTimeout  = 5 * time.Second
)

// Source names the layer a credential value was resolved from.
type Source string

const (
	SourceFile     Source = "file"
	SourceEnv      Source = "env"
	SourceFallback Source = "fallback"
)

// Reader is what request paths depend on: one fresh value per call.
type Reader interface {
	Read() string
}

// Store resolves and persists the credential. It holds no cached value: every Read
// goes back to the file, so writes from this or any other process are seen on the next call.
type Store struct {
	path     string
	fallback string
	lock     *flock.Flock
	logger   *slog.Logger
}

// NewStore builds a Store for the JSON document at path. fallback must be non-empty.
func NewStore(path, fallback string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, common.InvalidInput("credential path is required")
	}
	if strings.TrimSpace(fallback) == "" {
		return nil, common.InvalidInput("fallback credential must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:     path,
		fallback: fallback,
		lock:     flock.New(path + ".lock"),
		logger:   logger,
	}, nil
}

// Path returns the location of the persisted document.
func (s *Store) Path() string { return s.path }

// Read returns the current credential. It never fails and never returns "".
func (s *Store) Read() string {
	value, _ := s.Resolve()
	return value
}

// Source reports which layer the current credential comes from.
func (s *Store) Source() Source {
	_, src := s.Resolve()
	return src
}

// Resolve returns the current credential along with the layer that produced it.
func (s *Store) Resolve() (string, Source) {
	value, err := s.readFile()
	if err != nil {
		s.logger.Warn("credential.read.file_error", "path", s.path, "error", err)
	}
	if value != "" {
		return value, SourceFile
	}
	if env := strings.TrimSpace(os.Getenv(EnvVar)); env != "" {
		return env, SourceEnv
	}
	return s.fallback, SourceFallback
}

// Update persists value and makes it the active credential of this process.
func (s *Store) Update(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.InvalidInput("credential is required")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return common.StorageError("create credential directory", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return common.StorageError("lock credential file", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("credential.unlock_error", "path", s.path, "error", err)
		}
	}()

	doc, err := s.readDoc()
	if err != nil {
		// an unreadable document is replaced rather than blocking the update
		s.logger.Warn("credential.update.discard_unreadable", "path", s.path, "error", err)
		doc = map[string]json.RawMessage{}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return common.StorageError("encode credential", err)
	}
	doc[docKey] = encoded
	delete(doc, legacyDocKey)

	if err := writeFileAtomic(s.path, doc); err != nil {
		return common.StorageError("write credential file", err)
	}
	if err := os.Setenv(EnvVar, value); err != nil {
		s.logger.Warn("credential.update.setenv_error", "error", err)
	}

	s.logger.Info("credential.update.ok", "path", s.path, "credential", Mask(value))
	return nil
}

func (s *Store) readFile() (string, error) {
	doc, err := s.readDoc()
	if err != nil {
		return "", err
	}
	for _, key := range []string{docKey, legacyDocKey} {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, nil
		}
	}
	return "", nil
}

// readDoc returns the persisted document; a missing file is an empty document.
func (s *Store) readDoc() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}
	return doc, nil
}

// writeFileAtomic replaces path via rename so concurrent readers never see a partial document.
func writeFileAtomic(path string, doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
