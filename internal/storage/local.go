package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"ramble/internal/fileutil"
	"ramble/internal/services"
)

// Local implements Store over a directory on the local filesystem. It is the
// default backend; remote hosts can be mounted under the root or swapped in
// behind the same interface.
type Local struct {
	root string
}

// NewLocal constructs a local store rooted at the given directory.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Root returns the absolute root directory of the store.
func (l *Local) Root() string { return l.root }

func (l *Local) abs(storePath string) string {
	return filepath.Join(l.root, filepath.FromSlash(storePath))
}

func (l *Local) List(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(l.abs(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "storage", "list", dir, err)
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		out = append(out, Entry{
			Name:    entry.Name(),
			Path:    filepath.ToSlash(filepath.Join(dir, entry.Name())),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   entry.IsDir(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *Local) Stat(ctx context.Context, storePath string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(l.abs(storePath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, services.Wrap(services.ErrNotFound, "storage", "stat", storePath, err)
		}
		return Entry{}, fmt.Errorf("stat %s: %w", storePath, err)
	}
	return Entry{
		Name:    filepath.Base(storePath),
		Path:    storePath,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

func (l *Local) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := l.abs(dst)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare move target: %w", err)
	}
	if err := os.Rename(l.abs(src), target); err != nil {
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}
	return nil
}

func (l *Local) Upload(ctx context.Context, localPath, storePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := l.abs(storePath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare upload target: %w", err)
	}
	if err := fileutil.CopyFile(localPath, target); err != nil {
		return fmt.Errorf("upload %s: %w", storePath, err)
	}
	return nil
}

func (l *Local) Download(ctx context.Context, storePath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("prepare download target: %w", err)
	}
	if err := fileutil.CopyFile(l.abs(storePath), localPath); err != nil {
		return fmt.Errorf("download %s: %w", storePath, err)
	}
	return nil
}

func (l *Local) EnsureDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.abs(dir), 0o755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", dir, err)
	}
	return nil
}

func (l *Local) Write(ctx context.Context, storePath string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := l.abs(storePath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare write target: %w", err)
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", storePath, err)
	}
	return nil
}

func (l *Local) Remove(ctx context.Context, storePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.RemoveAll(l.abs(storePath)); err != nil {
		return fmt.Errorf("remove %s: %w", storePath, err)
	}
	return nil
}
