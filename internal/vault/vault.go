package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iamvkosarev/notechat/internal/model"
)

var ErrPathOutsideVault = errors.New("path escapes vault root")

// Vault is a directory of notes. All paths given to and returned from it are
// vault-relative and slash separated.
type Vault struct {
	root     string
	skipDirs map[string]struct{}
}

// New opens root as a vault. skipDirs names top-level directories that are
// never scanned for notes, in addition to hidden ones.
func New(root string, skipDirs ...string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve vault root %s: %v", model.ErrIO, root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat vault root %s: %v", model.ErrIO, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: vault root %s is not a directory", model.ErrIO, abs)
	}
	skip := make(map[string]struct{}, len(skipDirs))
	for _, dir := range skipDirs {
		skip[path.Clean(filepath.ToSlash(dir))] = struct{}{}
	}
	return &Vault{root: abs, skipDirs: skip}, nil
}

// Abs maps a vault-relative path onto the filesystem. Absolute paths and
// paths climbing above the root are rejected.
func (v *Vault) Abs(rel string) (string, error) {
	if rel == "" {
		rel = "."
	}
	native := filepath.FromSlash(rel)
	if !isLocal(native) {
		return "", fmt.Errorf("%w: %w: %s", model.ErrIO, ErrPathOutsideVault, rel)
	}
	return filepath.Join(v.root, native), nil
}

// Rel maps a filesystem path inside the vault back to its vault-relative form.
func (v *Vault) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil || !isLocal(rel) {
		return "", fmt.Errorf("%w: %w: %s", model.ErrIO, ErrPathOutsideVault, abs)
	}
	return filepath.ToSlash(rel), nil
}

func isLocal(p string) bool {
	return p == "." || filepath.IsLocal(p)
}

func (v *Vault) ReadFile(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := v.Abs(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", model.ErrIO, rel, err)
	}
	return data, nil
}

// WriteFile creates parent directories and overwrites any existing file.
func (v *Vault) WriteFile(ctx context.Context, rel string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := v.Abs(rel)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("%w: failed to create dir for %s: %w", model.ErrIO, rel, err)
	}
	if err = os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", model.ErrIO, rel, err)
	}
	return nil
}

func (v *Vault) Exists(rel string) bool {
	abs, err := v.Abs(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// Remove deletes a file. A missing file is not an error.
func (v *Vault) Remove(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := v.Abs(rel)
	if err != nil {
		return err
	}
	if err = os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove %s: %w", model.ErrIO, rel, err)
	}
	return nil
}

// ListFiles returns the regular files directly inside dir whose name ends
// with ext, sorted by name. A missing dir yields no files.
func (v *Vault) ListFiles(ctx context.Context, dir, ext string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := v.Abs(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to list %s: %w", model.ErrIO, dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		files = append(files, path.Join(filepath.ToSlash(dir), entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
