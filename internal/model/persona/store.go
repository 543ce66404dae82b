package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store exposes the persona catalogue in relay order.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice; order is preserved.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns a copy of the personas in relay order.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile 从 YAML 文件读取角色列表，用于替换内置的 Seed。
func LoadFile(path string) ([]Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML persona list and validates it.
func Parse(raw []byte) ([]Persona, error) {
	var file personaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode persona yaml: %w", err)
	}
	if len(file.Personas) == 0 {
		return nil, errors.New("persona file defines no personas")
	}

	seen := make(map[string]struct{}, len(file.Personas))
	for i, p := range file.Personas {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("persona #%d: id is required", i+1)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("persona %q: duplicate id", id)
		}
		if strings.TrimSpace(p.SystemPrompt) == "" {
			return nil, fmt.Errorf("persona %q: systemPrompt is required", id)
		}
		seen[id] = struct{}{}
		file.Personas[i].ID = id
		file.Personas[i].SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	}
	return file.Personas, nil
}
