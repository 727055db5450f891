package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// dirFiles is a ComponentFiles backed by a plain directory on disk.
type dirFiles struct {
	root string
}

func newDirFiles(root string) *dirFiles {
	return &dirFiles{root: root}
}

func (d *dirFiles) resolve(name string) (string, error) {
	clean, err := cleanMemberPath(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func (d *dirFiles) Exists(name string) bool {
	p, err := d.resolve(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

func (d *dirFiles) GetBin(name string) ([]byte, error) {
	p, err := d.resolve(name)
	if err != nil {
		return nil, newLoadError(FileLoadFailed, name, err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, newLoadError(FileLoadFailed, name, err)
	}
	return b, nil
}

func (d *dirFiles) GetText(name string) (string, error) {
	b, err := d.GetBin(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *dirFiles) GetJSON(name string, v any) error {
	b, err := d.GetBin(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return newLoadError(FileLoadFailed, name, err)
	}
	return nil
}
