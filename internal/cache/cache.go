package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// Cache provides content-addressed storage for mod files.
// Objects are stored by their SHA256 hash; Put verifies content before
// publishing it, readers verify again while consuming it.
type Cache struct {
	dir string
}

// New creates a Cache at the given directory.
// The directory is created if it does not exist.
func New(dir string) (*Cache, error) {
	objDir := filepath.Join(dir, "objects")
	if err := os.MkdirAll(objDir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", objDir, err)
	}
	return &Cache{dir: dir}, nil
}

// DefaultDir returns the default cache directory ($XDG_CACHE_HOME/quickjoin).
func DefaultDir() string {
	return filepath.Join(xdg.CacheHome, "quickjoin")
}

// Open returns a reader for the object with the given hash.
// Returns nil, false, nil if it is not cached.
func (c *Cache) Open(hash string) (io.ReadCloser, bool, error) {
	if !validHash(hash) {
		return nil, false, nil
	}
	f, err := os.Open(c.objectPath(hash))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("opening cache entry %s: %w", hash, err)
	}
	return f, true, nil
}

// Put stores the content read from r under hash.
// The content is verified against hash before it becomes visible.
// No-op if already cached.
func (c *Cache) Put(hash string, r io.Reader) error {
	if !validHash(hash) {
		return fmt.Errorf("cache put: invalid hash %q", hash)
	}

	path := c.objectPath(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache subdirectory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		return fmt.Errorf("writing cache temp file: %w", err)
	}
	if actual := hex.EncodeToString(h.Sum(nil)); actual != hash {
		return fmt.Errorf("cache put: content hash %s does not match declared hash %s", actual, hash)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing cache temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming cache temp file: %w", err)
	}

	success = true
	return nil
}

// PutFile stores the file at path under hash.
func (c *Cache) PutFile(hash, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	defer f.Close()
	return c.Put(hash, f)
}

// Has checks if a hash exists in the cache without reading content.
func (c *Cache) Has(hash string) bool {
	if !validHash(hash) {
		return false
	}
	_, err := os.Stat(c.objectPath(hash))
	return err == nil
}

// Evict removes a corrupt or unwanted entry. Missing entries are ignored.
func (c *Cache) Evict(hash string) error {
	if !validHash(hash) {
		return nil
	}
	err := os.Remove(c.objectPath(hash))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("evicting cache entry %s: %w", hash, err)
	}
	return nil
}

// Size returns the total size of cached objects in bytes.
func (c *Cache) Size() (int64, error) {
	var total int64
	err := filepath.WalkDir(filepath.Join(c.dir, "objects"), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// Path returns the cache directory path.
func (c *Cache) Path() string {
	return c.dir
}

func (c *Cache) objectPath(hash string) string {
	return filepath.Join(c.dir, "objects", hash[:2], hash)
}

func validHash(hash string) bool {
	if len(hash) != sha256.Size*2 || strings.ToLower(hash) != hash {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// HashFile streams the file at path through SHA256.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
