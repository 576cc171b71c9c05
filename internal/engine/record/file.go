package record

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Decode reads and validates a rig. Unknown fields are an error.
func Decode(r io.Reader) (*Rig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rig Rig
	if err := dec.Decode(&rig); err != nil {
		return nil, fmt.Errorf("decoding rig: %w", err)
	}
	if err := rig.Validate(); err != nil {
		return nil, err
	}
	return &rig, nil
}

// Encode writes rig as YAML.
func Encode(w io.Writer, rig *Rig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rig); err != nil {
		return fmt.Errorf("encoding rig: %w", err)
	}
	return enc.Close()
}

// LoadRig reads a rig file. Texture paths resolve against its directory.
func LoadRig(path string) (*Rig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rig, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rig.BaseDir = filepath.Dir(path)
	return rig, nil
}

// SaveRig writes rig to path, creating parent directories.
func SaveRig(path string, rig *Rig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, rig); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Validate checks what the YAML schema cannot: unique mesh and animation
// names, and vertex weights that stay inside their bone table.
func (r *Rig) Validate() error {
	meshes := make(map[string]bool, len(r.Meshes))
	for _, m := range r.Meshes {
		if meshes[m.Name] {
			return fmt.Errorf("mesh %q: %w", m.Name, ErrDuplicateName)
		}
		meshes[m.Name] = true

		skin := len(m.Skin)
		if skin == 0 {
			skin = len(r.Skin)
		}
		for v, w := range m.Weights {
			for i, id := range w.IDs {
				if w.Weights[i] != 0 && (id < 0 || int(id) >= skin) {
					return fmt.Errorf("mesh %q vertex %d: id %d of %d: %w", m.Name, v, id, skin, ErrSkinIndex)
				}
			}
		}
	}

	tracks := make(map[string]bool, len(r.Animations))
	for _, t := range r.Animations {
		if tracks[t.Name] {
			return fmt.Errorf("animation %q: %w", t.Name, ErrDuplicateName)
		}
		tracks[t.Name] = true
	}
	return nil
}
