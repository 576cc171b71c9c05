package record

import (
	"fmt"

	"github.com/Faultbox/glr/internal/engine/animation"
	"github.com/Faultbox/glr/internal/engine/material"
	"github.com/Faultbox/glr/internal/engine/mesh"
	"github.com/Faultbox/glr/internal/engine/skeleton"
	"github.com/Faultbox/glr/pkg/math"
)

func vec2(a [2]float32) math.Vec2 { return math.Vec2{X: a[0], Y: a[1]} }
func vec3(a [3]float32) math.Vec3 { return math.Vec3{X: a[0], Y: a[1], Z: a[2]} }
func vec4(a [4]float32) math.Vec4 { return math.Vec4{X: a[0], Y: a[1], Z: a[2], W: a[3]} }
func quat(a [4]float32) math.Quat { return math.Quat{X: a[0], Y: a[1], Z: a[2], W: a[3]} }

func arr2(v math.Vec2) [2]float32 { return [2]float32{v.X, v.Y} }
func arr3(v math.Vec3) [3]float32 { return [3]float32{v.X, v.Y, v.Z} }
func arr4(v math.Vec4) [4]float32 { return [4]float32{v.X, v.Y, v.Z, v.W} }
func arrQ(q math.Quat) [4]float32 { return [4]float32{q.X, q.Y, q.Z, q.W} }

// Matrix4 returns the bind pose as a matrix.
func (t Transform) Matrix4() math.Mat4 {
	if t.Matrix != nil {
		return math.Mat4(*t.Matrix)
	}
	tr, rot, sc := math.Vec3{}, math.QuatIdentity(), math.Vec3One()
	if t.Translation != nil {
		tr = vec3(*t.Translation)
	}
	if t.Rotation != nil {
		rot = quat(*t.Rotation)
	}
	if t.Scale != nil {
		sc = vec3(*t.Scale)
	}
	return math.Compose(tr, rot, sc)
}

// FromMatrix records m exactly.
func FromMatrix(m math.Mat4) Transform {
	a := [16]float32(m)
	return Transform{Matrix: &a}
}

// FromHierarchy records every bone of h in index order.
func FromHierarchy(h *skeleton.Hierarchy) []Bone {
	joints := h.Joints()
	out := make([]Bone, len(joints))
	for i, j := range joints {
		out[i] = Bone{Name: j.Name, Transform: FromMatrix(j.Transform)}
		if j.Parent >= 0 {
			out[i].Parent = joints[j.Parent].Name
		}
	}
	return out
}

// ToHierarchy builds a hierarchy, resolving parents by name.
func ToHierarchy(bones []Bone) (*skeleton.Hierarchy, error) {
	index := make(map[string]int, len(bones))
	for i, b := range bones {
		if _, dup := index[b.Name]; !dup {
			index[b.Name] = i
		}
	}

	joints := make([]skeleton.Joint, len(bones))
	for i, b := range bones {
		parent := -1
		if b.Parent != "" {
			p, ok := index[b.Parent]
			if !ok {
				return nil, fmt.Errorf("bone %q: parent %q: %w", b.Name, b.Parent, ErrUnknownBone)
			}
			parent = p
		}
		joints[i] = skeleton.Joint{Name: b.Name, Transform: b.Transform.Matrix4(), Parent: parent}
	}
	return skeleton.New(joints)
}

// FromBoneData records the bone table in slot order.
func FromBoneData(d *skeleton.BoneData) []SkinBone {
	out := make([]SkinBone, d.Len())
	for i := range out {
		out[i] = SkinBone{Name: d.Name(i), Offset: [16]float32(d.Offset(i))}
	}
	return out
}

// ToBoneData builds a bone table; slots follow record order.
func ToBoneData(skin []SkinBone) *skeleton.BoneData {
	d := skeleton.NewBoneData()
	for _, s := range skin {
		d.Add(s.Name, math.Mat4(s.Offset))
	}
	return d
}

// FromTrack records every channel of t, bones sorted by name.
func FromTrack(t *animation.Track) Track {
	rec := Track{
		Name:           t.Name(),
		Duration:       t.Duration(),
		TicksPerSecond: t.TicksPerSecond(),
	}
	for _, bone := range t.Bones() {
		ch, _ := t.Channels(bone)
		c := Channel{Bone: bone}
		for _, k := range ch.Positions {
			c.Positions = append(c.Positions, VectorKey{Time: k.Time, Value: arr3(k.Value)})
		}
		for _, k := range ch.Rotations {
			c.Rotations = append(c.Rotations, QuatKey{Time: k.Time, Value: arrQ(k.Value)})
		}
		for _, k := range ch.Scales {
			c.Scales = append(c.Scales, VectorKey{Time: k.Time, Value: arr3(k.Value)})
		}
		rec.Channels = append(rec.Channels, c)
	}
	return rec
}

// ToTrack builds a track. A bone listed twice is an error.
func ToTrack(rec Track) (*animation.Track, error) {
	channels := make(map[string]animation.Channels, len(rec.Channels))
	for _, c := range rec.Channels {
		if _, dup := channels[c.Bone]; dup {
			return nil, fmt.Errorf("track %q bone %q: %w", rec.Name, c.Bone, ErrDuplicateChannel)
		}
		var ch animation.Channels
		for _, k := range c.Positions {
			ch.Positions = append(ch.Positions, animation.VectorKey{Time: k.Time, Value: vec3(k.Value)})
		}
		for _, k := range c.Rotations {
			ch.Rotations = append(ch.Rotations, animation.QuatKey{Time: k.Time, Value: quat(k.Value)})
		}
		for _, k := range c.Scales {
			ch.Scales = append(ch.Scales, animation.VectorKey{Time: k.Time, Value: vec3(k.Value)})
		}
		channels[c.Bone] = ch
	}
	return animation.NewTrack(rec.Name, rec.Duration, rec.TicksPerSecond, channels)
}

// FromMaterial records p.
func FromMaterial(p material.Properties) *Material {
	return &Material{
		Ambient:   arr4(p.Ambient),
		Diffuse:   arr4(p.Diffuse),
		Specular:  arr4(p.Specular),
		Emission:  arr4(p.Emission),
		Shininess: p.Shininess,
		Strength:  p.Strength,
	}
}

// ToMaterial returns the properties of m, or the defaults for nil.
func ToMaterial(m *Material) material.Properties {
	if m == nil {
		return material.Default()
	}
	p := material.Default()
	p.Ambient = vec4(m.Ambient)
	p.Diffuse = vec4(m.Diffuse)
	p.Specular = vec4(m.Specular)
	p.Emission = vec4(m.Emission)
	p.Shininess = m.Shininess
	p.Strength = m.Strength
	return p
}

// FromMesh records the vertex streams of data. The bone table is recorded
// only when it has entries.
func FromMesh(name string, data mesh.Data) Mesh {
	rec := Mesh{Name: name}
	for _, v := range data.Positions {
		rec.Positions = append(rec.Positions, arr3(v))
	}
	for _, v := range data.Normals {
		rec.Normals = append(rec.Normals, arr3(v))
	}
	for _, v := range data.TexCoords {
		rec.TexCoords = append(rec.TexCoords, arr2(v))
	}
	for _, v := range data.Colors {
		rec.Colors = append(rec.Colors, arr4(v))
	}
	for _, b := range data.Bones {
		rec.Weights = append(rec.Weights, Weights{IDs: b.IDs, Weights: b.Weights})
	}
	if data.BoneData.Len() > 0 {
		rec.Skin = FromBoneData(data.BoneData)
	}
	return rec
}

// ToMeshData builds vertex data. skin is used when the record has no bone
// table of its own.
func ToMeshData(rec Mesh, skin *skeleton.BoneData) mesh.Data {
	var data mesh.Data
	for _, v := range rec.Positions {
		data.Positions = append(data.Positions, vec3(v))
	}
	for _, v := range rec.Normals {
		data.Normals = append(data.Normals, vec3(v))
	}
	for _, v := range rec.TexCoords {
		data.TexCoords = append(data.TexCoords, vec2(v))
	}
	for _, v := range rec.Colors {
		data.Colors = append(data.Colors, vec4(v))
	}
	for _, w := range rec.Weights {
		data.Bones = append(data.Bones, skeleton.VertexBoneData{IDs: w.IDs, Weights: w.Weights})
	}
	if len(rec.Skin) > 0 {
		data.BoneData = ToBoneData(rec.Skin)
	} else {
		data.BoneData = skin
	}
	return data
}
