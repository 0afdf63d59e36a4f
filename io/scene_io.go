package io

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the only scene file version Parse accepts.
const SchemaVersion = "1"

// Schema is the top-level structure of a scene file. Sections are loaded in
// field order, so entities can name any mesh, texture or program declared
// in the same file.
type Schema struct {
	Version  string          `yaml:"version"`
	Name     string          `yaml:"name"`
	Camera   CameraRecord    `yaml:"camera"`
	Meshes   []MeshRecord    `yaml:"meshes,omitempty"`
	Textures []TextureRecord `yaml:"textures,omitempty"`
	Programs []ProgramRecord `yaml:"programs,omitempty"`
	Entities []EntityRecord  `yaml:"entities,omitempty"`
}

// CameraRecord stores the camera state. FOV is in degrees.
type CameraRecord struct {
	Position [3]float32 `yaml:"position"`
	Target   [3]float32 `yaml:"target"`
	FOV      float32    `yaml:"fov"`
	Near     float32    `yaml:"near"`
	Far      float32    `yaml:"far"`
	Mode     string     `yaml:"mode"` // "orbit" or "fixed"
	Distance float32    `yaml:"distance,omitempty"`
	Yaw      float32    `yaml:"yaw,omitempty"`
	Pitch    float32    `yaml:"pitch,omitempty"`
}

// MeshRecord declares a primitive mesh.
type MeshRecord struct {
	Name         string  `yaml:"name"`
	Shape        string  `yaml:"shape"` // "cube", "plane" or "sphere"
	Size         float32 `yaml:"size,omitempty"`
	Width        float32 `yaml:"width,omitempty"`
	Depth        float32 `yaml:"depth,omitempty"`
	Subdivisions int     `yaml:"subdivisions,omitempty"`
	Radius       float32 `yaml:"radius,omitempty"`
	Segments     int     `yaml:"segments,omitempty"`
	Rings        int     `yaml:"rings,omitempty"`
}

// TextureRecord declares a texture. Exactly one of Path, Color and Checker
// is set. A relative Path is resolved against the scene file.
type TextureRecord struct {
	Name    string         `yaml:"name"`
	Path    string         `yaml:"path,omitempty"`
	Color   *[4]uint8      `yaml:"color,omitempty"`
	Checker *CheckerRecord `yaml:"checker,omitempty"`
}

type CheckerRecord struct {
	Size uint32   `yaml:"size"`
	A    [4]uint8 `yaml:"a"`
	B    [4]uint8 `yaml:"b"`
}

// ProgramRecord declares a shader program read from the shader directory.
// Bindings is the compact signature, for example "UUS". Uniforms names the
// layout of each uniform binding in order.
type ProgramRecord struct {
	Name     string   `yaml:"name"`
	Bindings string   `yaml:"bindings"`
	Uniforms []string `yaml:"uniforms,omitempty"`
}

// TransformRecord stores a transform. A zero scale means 1 and a zero
// rotation means identity.
type TransformRecord struct {
	Position [3]float32 `yaml:"position"`
	Rotation [4]float32 `yaml:"rotation,omitempty"` // Quaternion (x,y,z,w)
	Scale    [3]float32 `yaml:"scale,omitempty"`
}

// EntityRecord stores one entity. Kind selects the factory; the fields a
// kind does not use are ignored.
type EntityRecord struct {
	Name      string          `yaml:"name"`
	Kind      string          `yaml:"kind"`
	Parent    string          `yaml:"parent,omitempty"`
	Transform TransformRecord `yaml:"transform"`

	// rendered, animated
	Mesh       string   `yaml:"mesh,omitempty"`
	Program    string   `yaml:"program,omitempty"`
	Textures   []string `yaml:"textures,omitempty"`
	LightScene string   `yaml:"light_scene,omitempty"`
	Hidden     bool     `yaml:"hidden,omitempty"`
	Joints     int      `yaml:"joints,omitempty"`

	// light
	Tint      [3]float32 `yaml:"tint,omitempty"`
	Intensity float32    `yaml:"intensity,omitempty"`
	Distance  float32    `yaml:"distance,omitempty"`
	Spread    float32    `yaml:"spread,omitempty"`
}

// ParseSchema decodes a scene file. Unknown fields are rejected.
func ParseSchema(data []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	s := &Schema{}
	if err := dec.Decode(s); err != nil {
		return nil, errors.Wrap(err, "parse scene file")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadSchema reads and parses a scene file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scene file")
	}
	s, err := ParseSchema(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return s, nil
}

// SaveSchema writes s as YAML.
func SaveSchema(path string, s *Schema) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal scene")
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the version, that names are unique within each section
// and that every parent is declared before its children.
func (s *Schema) Validate() error {
	if s.Version != SchemaVersion {
		return errors.Newf("scene %q: unsupported version %q", s.Name, s.Version)
	}
	if err := unique("mesh", s.Meshes, func(r MeshRecord) string { return r.Name }); err != nil {
		return err
	}
	if err := unique("texture", s.Textures, func(r TextureRecord) string { return r.Name }); err != nil {
		return err
	}
	if err := unique("program", s.Programs, func(r ProgramRecord) string { return r.Name }); err != nil {
		return err
	}
	seen := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		if e.Name == "" {
			return errors.New("entity without a name")
		}
		if seen[e.Name] {
			return errors.Newf("duplicate entity %q", e.Name)
		}
		if e.Parent != "" && !seen[e.Parent] {
			return errors.Newf("entity %q: parent %q is not declared before it", e.Name, e.Parent)
		}
		seen[e.Name] = true
	}
	for _, t := range s.Textures {
		n := 0
		if t.Path != "" {
			n++
		}
		if t.Color != nil {
			n++
		}
		if t.Checker != nil {
			n++
		}
		if n != 1 {
			return errors.Newf("texture %q: exactly one of path, color and checker must be set", t.Name)
		}
	}
	return nil
}

func unique[T any](kind string, records []T, name func(T) string) error {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		n := name(r)
		if n == "" {
			return errors.Newf("%s without a name", kind)
		}
		if seen[n] {
			return errors.Newf("duplicate %s %q", kind, n)
		}
		seen[n] = true
	}
	return nil
}

// NewDefaultSchema returns a scene with an orbit camera and nothing else.
func NewDefaultSchema(name string) *Schema {
	return &Schema{
		Version: SchemaVersion,
		Name:    name,
		Camera: CameraRecord{
			Position: [3]float32{0, 2, 5},
			FOV:      60,
			Near:     0.1,
			Far:      1000,
			Mode:     "orbit",
			Distance: 5,
		},
	}
}
