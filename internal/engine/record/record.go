// Package record maps rigs to plain YAML records and back. A rig file holds
// a bone hierarchy, the bone table meshes are skinned against, meshes with
// their textures and materials, and animation tracks.
package record

// Rig is the top-level record of a rig file.
type Rig struct {
	Name          string       `yaml:"name"`
	GlobalInverse *[16]float32 `yaml:"global_inverse,omitempty,flow"`
	Bones         []Bone       `yaml:"bones"`
	Skin          []SkinBone   `yaml:"skin,omitempty"`
	Meshes        []Mesh       `yaml:"meshes,omitempty"`
	Animations    []Track      `yaml:"animations,omitempty"`

	// BaseDir resolves relative texture paths. LoadRig sets it to the
	// directory of the file.
	BaseDir string `yaml:"-"`
}

// Transform is a bind pose. Matrix, when set, wins over the TRS fields.
// Missing TRS fields are identity.
type Transform struct {
	Translation *[3]float32  `yaml:"translation,omitempty,flow"`
	Rotation    *[4]float32  `yaml:"rotation,omitempty,flow"` // x, y, z, w
	Scale       *[3]float32  `yaml:"scale,omitempty,flow"`
	Matrix      *[16]float32 `yaml:"matrix,omitempty,flow"`
}

// Bone is one node of the hierarchy. Parent names an earlier or later bone;
// the root has no parent.
type Bone struct {
	Name      string    `yaml:"name"`
	Parent    string    `yaml:"parent,omitempty"`
	Transform Transform `yaml:"transform"`
}

// SkinBone registers a bone for skinning with its inverse bind matrix.
// Slots are assigned in order.
type SkinBone struct {
	Name   string      `yaml:"name"`
	Offset [16]float32 `yaml:"offset,flow"`
}

// Weights are the skinning influences of one vertex.
type Weights struct {
	IDs     [4]int32   `yaml:"ids,flow"`
	Weights [4]float32 `yaml:"weights,flow"`
}

// Material mirrors material.Properties.
type Material struct {
	Ambient   [4]float32 `yaml:"ambient,flow"`
	Diffuse   [4]float32 `yaml:"diffuse,flow"`
	Specular  [4]float32 `yaml:"specular,flow"`
	Emission  [4]float32 `yaml:"emission,flow"`
	Shininess float32    `yaml:"shininess"`
	Strength  float32    `yaml:"strength"`
}

// Mesh is one skinned mesh. Skin, when empty, falls back to the rig's.
type Mesh struct {
	Name      string       `yaml:"name"`
	Positions [][3]float32 `yaml:"positions"`
	Normals   [][3]float32 `yaml:"normals,omitempty"`
	TexCoords [][2]float32 `yaml:"tex_coords,omitempty"`
	Colors    [][4]float32 `yaml:"colors,omitempty"`
	Weights   []Weights    `yaml:"weights,omitempty"`
	Skin      []SkinBone   `yaml:"skin,omitempty"`

	// Textures are the layers of the mesh's texture array.
	Textures   []string  `yaml:"textures,omitempty"`
	MagentaKey bool      `yaml:"magenta_key,omitempty"`
	Material   *Material `yaml:"material,omitempty"`
}

// VectorKey is a position or scale key.
type VectorKey struct {
	Time  float64    `yaml:"t"`
	Value [3]float32 `yaml:"v,flow"`
}

// QuatKey is a rotation key, x, y, z, w.
type QuatKey struct {
	Time  float64    `yaml:"t"`
	Value [4]float32 `yaml:"v,flow"`
}

// Channel holds the keys of one bone.
type Channel struct {
	Bone      string      `yaml:"bone"`
	Positions []VectorKey `yaml:"positions,omitempty"`
	Rotations []QuatKey   `yaml:"rotations,omitempty"`
	Scales    []VectorKey `yaml:"scales,omitempty"`
}

// Track is one animation clip. Times are in ticks.
type Track struct {
	Name           string    `yaml:"name"`
	Duration       float64   `yaml:"duration"`
	TicksPerSecond float64   `yaml:"ticks_per_second,omitempty"`
	Channels       []Channel `yaml:"channels"`
}
