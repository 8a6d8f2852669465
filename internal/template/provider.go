package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrTemplateNotFound is returned when a provider has no template under an
// ID.
var ErrTemplateNotFound = errors.New("template not found")

// Provider supplies templates by ID.
type Provider interface {
	Template(id string) (*Template, error)
}

// FileProvider reads templates from <dir>/<id>.json.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a provider over a template directory.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// Template loads the template stored under id.
func (p *FileProvider) Template(id string) (*Template, error) {
	if !validID(id) {
		return nil, fmt.Errorf("template id %q is not a plain name", id)
	}
	data, err := os.ReadFile(filepath.Join(p.dir, id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("template %q: %w", id, ErrTemplateNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read template %q: %w", id, err)
	}

	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse template %q: %w", id, err)
	}
	if t.ID == "" {
		t.ID = id
	}
	return &t, nil
}

// Save writes the template to its file, creating the directory if needed.
func (p *FileProvider) Save(t *Template) error {
	if !validID(t.ID) {
		return fmt.Errorf("template id %q is not a plain name", t.ID)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("ensure template directory: %w", err)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode template %q: %w", t.ID, err)
	}
	if err := os.WriteFile(filepath.Join(p.dir, t.ID+".json"), data, 0o644); err != nil {
		return fmt.Errorf("write template %q: %w", t.ID, err)
	}
	return nil
}

// List returns the IDs of every template in the directory.
func (p *FileProvider) List() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}
