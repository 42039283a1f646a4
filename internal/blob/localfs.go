package blob

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
)

// LocalFS is a flat artifact directory. Names are bare file names; anything that would
// resolve outside Root is treated as absent.
type LocalFS struct {
	Root string
}

// NewLocalFS ensures root exists.
func NewLocalFS(root string) (LocalFS, error) {
	if strings.TrimSpace(root) == "" {
		return LocalFS{}, common.InvalidInput("artifact directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return LocalFS{}, common.StorageError("create artifact directory", err)
	}
	return LocalFS{Root: root}, nil
}

// Resolve maps name to an absolute path inside Root, or fails with NotFound.
func (l LocalFS) Resolve(name string) (string, error) {
	if !validName(name) {
		return "", common.NotFound("file not found")
	}
	return filepath.Join(l.Root, name), nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name && filepath.IsLocal(name)
}

// Put writes the artifact produced by write under name, replacing any previous file.
// The file appears atomically, so a concurrent reader sees either the old or the new content.
func (l LocalFS) Put(name string, write func(io.Writer) error) (string, error) {
	abs, err := l.Resolve(name)
	if err != nil {
		return "", common.InvalidInputf("invalid artifact name %q", name)
	}
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return "", common.StorageError("create artifact directory", err)
	}

	tmp, err := os.CreateTemp(l.Root, "."+name+".*.tmp")
	if err != nil {
		return "", common.StorageError("create artifact", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return "", common.StorageError("write artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return "", common.StorageError("close artifact", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", common.StorageError("chmod artifact", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return "", common.StorageError("publish artifact", err)
	}
	return abs, nil
}

// Open returns the artifact and its info. A missing or non-regular file is NotFound.
func (l LocalFS) Open(name string) (*os.File, fs.FileInfo, error) {
	abs, err := l.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, common.NotFound("file not found")
		}
		return nil, nil, common.StorageError("open artifact", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, common.StorageError("stat artifact", err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, common.NotFound("file not found")
	}
	return f, info, nil
}

func (l LocalFS) Exists(name string) bool {
	abs, err := l.Resolve(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

func (l LocalFS) String() string {
	return fmt.Sprintf("LocalFS(%s)", l.Root)
}
