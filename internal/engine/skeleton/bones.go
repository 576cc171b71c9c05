package skeleton

import "github.com/Faultbox/glr/pkg/math"

// MaxInfluences is the number of bones that can weigh on one vertex.
const MaxInfluences = 4

// DefaultWeight is given to every slot of a vertex when a mesh carries no
// bone data at all.
const DefaultWeight = 0.25

// BoneInfo is a bone's skinning slot and offset (inverse bind) matrix.
type BoneInfo struct {
	Index  int
	Offset math.Mat4
}

// BoneData maps bone names to skinning slots for one mesh. Slots are handed
// out in insertion order and never change. The zero value is an empty table.
type BoneData struct {
	index   map[string]int
	names   []string
	offsets []math.Mat4
}

// NewBoneData returns an empty table.
func NewBoneData() *BoneData {
	return &BoneData{index: make(map[string]int)}
}

// Add registers name with its offset matrix and returns its slot. Adding a
// known name keeps the slot and replaces the offset.
func (d *BoneData) Add(name string, offset math.Mat4) int {
	if i, ok := d.index[name]; ok {
		d.offsets[i] = offset
		return i
	}
	if d.index == nil {
		d.index = make(map[string]int)
	}
	i := len(d.names)
	d.index[name] = i
	d.names = append(d.names, name)
	d.offsets = append(d.offsets, offset)
	return i
}

// Lookup returns the slot and offset of name.
func (d *BoneData) Lookup(name string) (BoneInfo, bool) {
	if d == nil {
		return BoneInfo{}, false
	}
	i, ok := d.index[name]
	if !ok {
		return BoneInfo{}, false
	}
	return BoneInfo{Index: i, Offset: d.offsets[i]}, true
}

// Len returns the number of registered bones. A nil table has none.
func (d *BoneData) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// Name returns the bone registered at slot i.
func (d *BoneData) Name(i int) string {
	return d.names[i]
}

// Offset returns the offset matrix at slot i.
func (d *BoneData) Offset(i int) math.Mat4 {
	return d.offsets[i]
}

// Clone returns an independent copy.
func (d *BoneData) Clone() *BoneData {
	c := NewBoneData()
	for i, name := range d.names {
		c.Add(name, d.offsets[i])
	}
	return c
}

// VertexBoneData is the set of bones that weigh on one vertex. Weights are
// uploaded as given.
type VertexBoneData struct {
	IDs     [MaxInfluences]int32
	Weights [MaxInfluences]float32
}

// AddWeight fills the first empty slot. It returns false when all slots are
// taken.
func (v *VertexBoneData) AddWeight(id int32, weight float32) bool {
	for i := range v.Weights {
		if v.Weights[i] == 0 {
			v.IDs[i] = id
			v.Weights[i] = weight
			return true
		}
	}
	return false
}

// DefaultVertexBoneData returns n vertices weighted DefaultWeight on bone 0
// in every slot.
func DefaultVertexBoneData(n int) []VertexBoneData {
	out := make([]VertexBoneData, n)
	for i := range out {
		for s := range out[i].Weights {
			out[i].Weights[s] = DefaultWeight
		}
	}
	return out
}
