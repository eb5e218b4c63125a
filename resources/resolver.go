package resources

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrNotFound is returned, wrapped, when a required resource cannot be
// located. It matches fs.ErrNotExist.
var ErrNotFound = fmt.Errorf("resource not found: %w", fs.ErrNotExist)

// findInDir returns the first alias of name present in dir.
func findInDir(dir string, name string) (string, bool) {
	for _, alias := range Aliases[name] {
		candidate := filepath.Join(dir, alias)
		if stat, err := os.Stat(candidate); err == nil && !stat.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// ResolveResources
// Resolves every resource in GetResourceEntries from dir. Missing optional
// resources are skipped; a missing required resource is an error matching
// fs.ErrNotExist.
func ResolveResources(dir string) (Resources, error) {
	foundResources := make(Resources)
	for name, flag := range GetResourceEntries() {
		path, ok := findInDir(dir, name)
		if !ok {
			if flag&RESOURCE_REQUIRED != 0 {
				foundResources.Cleanup()
				return nil, fmt.Errorf("cannot resolve required `%s` in "+
					"%s (tried %v): %w", name, dir, Aliases[name],
					ErrNotFound)
			}
			slog.Debug("resource not there, not required", "name", name,
				"dir", dir)
			continue
		}
		if err := foundResources.AddEntry(name, path); err != nil {
			foundResources.Cleanup()
			return nil, err
		}
	}
	return foundResources, nil
}

// ResolveFiles
// Resolves resources from explicit paths. specialsPath may be empty.
func ResolveFiles(vocabPath, mergesPath, specialsPath string) (Resources,
	error) {
	foundResources := make(Resources)
	paths := map[string]string{
		VocabResource:    vocabPath,
		MergesResource:   mergesPath,
		SpecialsResource: specialsPath,
	}
	for name, flag := range GetResourceEntries() {
		path := paths[name]
		if path == "" {
			if flag&RESOURCE_REQUIRED != 0 {
				foundResources.Cleanup()
				return nil, fmt.Errorf("no path given for required `%s`: %w",
					name, ErrNotFound)
			}
			continue
		}
		if err := foundResources.AddEntry(name, path); err != nil {
			foundResources.Cleanup()
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
			}
			return nil, err
		}
	}
	return foundResources, nil
}
