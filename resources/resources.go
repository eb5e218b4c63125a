package resources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

type ResourceFlag uint8

// Enumeration of resource flags that indicate what the resolver should do
// with the resource.
const (
	RESOURCE_REQUIRED ResourceFlag = 1 << iota
	RESOURCE_OPTIONAL
)

// Canonical resource names. The loader keys on these regardless of the
// file name found on disk.
const (
	VocabResource    = "vocab.json"
	MergesResource   = "merges.txt"
	SpecialsResource = "specials.txt"
)

type ResourceEntryDefs map[string]ResourceFlag

// ResourceEntry is a read-only view over a resource file. Data stays valid
// until Cleanup is called on the owning Resources.
type ResourceEntry struct {
	Path    string
	Data    []byte
	file    *os.File
	release func() error
}

// Ext returns the lower-cased extension of the file backing the entry.
func (entry ResourceEntry) Ext() string {
	return strings.ToLower(filepath.Ext(entry.Path))
}

type Resources map[string]ResourceEntry

// GetResourceEntries
// Returns a default map of resource entries that express what files are
// required and optional.
func GetResourceEntries() ResourceEntryDefs {
	return ResourceEntryDefs{
		VocabResource:    RESOURCE_REQUIRED,
		MergesResource:   RESOURCE_REQUIRED,
		SpecialsResource: RESOURCE_OPTIONAL,
	}
}

// Aliases lists, per canonical name, the file names tried in a directory,
// in order.
var Aliases = map[string][]string{
	VocabResource:    {"vocab.json", "encoder.json", "vocab.txt"},
	MergesResource:   {"merges.txt", "vocab.bpe", "merges.json"},
	SpecialsResource: {"specials.txt"},
}

// AddEntry
// Add a resource to the Resources map, opening it read-only and mapping it
// into memory.
func (rsrcs Resources) AddEntry(name string, path string) error {
	file, openErr := os.Open(path)
	if openErr != nil {
		return fmt.Errorf("cannot open `%s` at %s: %w", name, path, openErr)
	}
	stat, statErr := file.Stat()
	if statErr != nil {
		file.Close()
		return fmt.Errorf("cannot stat `%s` at %s: %w", name, path, statErr)
	}
	entry := ResourceEntry{Path: path, file: file}
	// Zero length files cannot be mapped.
	if stat.Size() == 0 {
		entry.Data = []byte{}
		entry.release = func() error { return nil }
	} else {
		data, release, mmapErr := readMmap(file)
		if mmapErr != nil {
			file.Close()
			return fmt.Errorf("error trying to mmap `%s`: %w", path,
				mmapErr)
		}
		entry.Data = data
		entry.release = release
	}
	slog.Debug("resolved resource", "name", name, "path", path,
		"size", humanize.Bytes(uint64(stat.Size())))
	rsrcs[name] = entry
	return nil
}

// Cleanup unmaps and closes every entry.
func (rsrcs Resources) Cleanup() {
	for name, rsrc := range rsrcs {
		if rsrc.release != nil {
			if err := rsrc.release(); err != nil {
				slog.Warn("unmap failed", "name", name, "error", err)
			}
		}
		if rsrc.file != nil {
			rsrc.file.Close()
		}
		delete(rsrcs, name)
	}
}
