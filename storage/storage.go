// Package storage defines the object-store boundary used for step inputs,
// outputs, and per-submitter configuration. Keys are namespaced as
// {submitterId}/{relativePath}.
package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store is the object-store capability consumed by the orchestrator.
type Store interface {
	// List returns the keys under the given prefix in lexical order.
	List(prefix string) ([]string, error)

	Delete(keys []string) error

	// Copy duplicates key under destPrefix, preserving the basename.
	Copy(key, destPrefix string) error

	GetContents(key string) ([]byte, error)
	PutContents(key string, contents []byte) error
}

// NotFoundError indicates a requested key does not exist in the store.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("key not found: %s", e.Key)
}

// Returns true if an error is of type NotFoundError
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// JoinKey joins key elements with the store separator. Unlike path.Join it
// preserves a trailing slash, which output-directory prefixes rely on.
func JoinKey(elems ...string) string {
	trailing := len(elems) > 0 && strings.HasSuffix(elems[len(elems)-1], "/")
	joined := path.Join(elems...)
	if trailing {
		joined += "/"
	}
	return joined
}

// ClearPrefix deletes every key under the given prefix.
func ClearPrefix(store Store, prefix string) error {
	keys, err := store.List(prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return store.Delete(keys)
}

// Upload replaces the submitter's namespace with the regular files found
// directly in dir. Subdirectories are not scanned. Unsafe to call while the
// submitter has a job running elsewhere, since it removes ongoing results.
func Upload(store Store, submitterID, dir string) error {
	if err := ClearPrefix(store, submitterID+"/"); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		if err := store.PutContents(JoinKey(submitterID, entry.Name()), contents); err != nil {
			return err
		}
	}
	return nil
}

// Download copies every key under the submitter's namespace into dir,
// creating subdirectories as needed. The submitter prefix is stripped from
// the local paths.
func Download(store Store, submitterID, dir string) error {
	keys, err := store.List(submitterID + "/")
	if err != nil {
		return err
	}
	for _, key := range keys {
		suffix := strings.TrimPrefix(key, submitterID+"/")
		if suffix == "" {
			continue
		}
		filename := filepath.Join(dir, filepath.FromSlash(suffix))
		if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			return err
		}
		contents, err := store.GetContents(key)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filename, contents, 0644); err != nil {
			return err
		}
	}
	return nil
}
