package loader

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// tarEntry records where a member's bytes live inside an already-opened
// tar file, so random-access reads don't re-scan headers.
type tarEntry struct {
	offset int64
	size   int64
}

// tarFiles is a ComponentFiles backed by a tar archive, indexed once at
// open time. Per-file reads seek into the shared file handle, guarded by
// a single mutex so concurrent Get* calls serialize — the archive has no
// safe concurrent-seek story otherwise.
type tarFiles struct {
	mu      sync.Mutex
	file    *os.File
	entries map[string]tarEntry
}

// openTarFiles indexes a tar archive by scanning its headers once.
func openTarFiles(path string) (*tarFiles, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newLoadError(FileLoadFailed, path, err)
	}

	entries := make(map[string]tarEntry)
	r := tar.NewReader(f)
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return nil, newLoadError(FileLoadFailed, path, fmt.Errorf("indexing tar: %w", err))
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		offset, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			f.Close()
			return nil, newLoadError(FileLoadFailed, path, err)
		}
		entries[hdr.Name] = tarEntry{offset: offset, size: hdr.Size}
	}

	return &tarFiles{file: f, entries: entries}, nil
}

func (t *tarFiles) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}

func (t *tarFiles) Exists(name string) bool {
	clean, err := cleanMemberPath(name)
	if err != nil {
		return false
	}
	_, ok := t.entries[clean]
	return ok
}

func (t *tarFiles) GetBin(name string) ([]byte, error) {
	clean, err := cleanMemberPath(name)
	if err != nil {
		return nil, newLoadError(FileLoadFailed, name, err)
	}
	entry, ok := t.entries[clean]
	if !ok {
		return nil, newLoadError(NotFound, name, nil)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.file.Seek(entry.offset, io.SeekStart); err != nil {
		return nil, newLoadError(FileLoadFailed, name, err)
	}
	buf := make([]byte, entry.size)
	if _, err := io.ReadFull(t.file, buf); err != nil {
		return nil, newLoadError(FileLoadFailed, name, err)
	}
	return buf, nil
}

func (t *tarFiles) GetText(name string) (string, error) {
	b, err := t.GetBin(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (t *tarFiles) GetJSON(name string, v any) error {
	b, err := t.GetBin(name)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(v); err != nil {
		return newLoadError(FileLoadFailed, name, err)
	}
	return nil
}
