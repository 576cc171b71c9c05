// Package mesh uploads skinned triangle meshes as one vertex array with a
// buffer per vertex stream.
package mesh

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/engine/resource"
	"github.com/Faultbox/glr/internal/engine/skeleton"
	"github.com/Faultbox/glr/internal/logger"
	"github.com/Faultbox/glr/pkg/math"
)

// Shader attribute locations of each stream.
const (
	AttribPosition uint32 = iota
	AttribNormal
	AttribTexCoord
	AttribColor
	AttribBoneIDs
	AttribBoneWeights
)

type stream int

const (
	positions stream = iota
	normals
	texCoords
	colors
	bones
	numStreams
)

// Data is the local vertex data of a mesh. Streams other than Positions may
// be empty; non-empty streams must match Positions in length.
type Data struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	TexCoords []math.Vec2
	Colors    []math.Vec4
	Bones     []skeleton.VertexBoneData
	BoneData  *skeleton.BoneData
}

// Mesh is a GPU-backed vertex array. Freeing it twice is a no-op.
type Mesh struct {
	resource.Lifecycle

	dev  device.Device
	name string
	data Data

	vertexCount int
	loaded      bool

	vao      device.Handle
	buffers  [numStreams]device.Handle
	capacity int
	// defaultBones is set while the bones stream holds generated weights.
	defaultBones bool
}

var _ resource.Resource = (*Mesh)(nil)

// New returns an unallocated mesh holding data.
func New(dev device.Device, name string, data Data) *Mesh {
	if data.BoneData == nil {
		data.BoneData = skeleton.NewBoneData()
	}
	return &Mesh{
		Lifecycle:   resource.NewLifecycle("mesh", name, resource.FreeTolerant),
		dev:         dev,
		name:        name,
		data:        data,
		vertexCount: len(data.Positions),
		loaded:      true,
	}
}

// Name returns the mesh name.
func (m *Mesh) Name() string { return m.name }

// VertexCount returns the number of vertices, kept after FreeLocalData.
func (m *Mesh) VertexCount() int { return m.vertexCount }

// IsLocalDataLoaded reports whether local vertex data is present.
func (m *Mesh) IsLocalDataLoaded() bool { return m.loaded }

// Data returns the local vertex data.
func (m *Mesh) Data() Data { return m.data }

// BoneData returns the bone table the mesh is skinned against.
func (m *Mesh) BoneData() *skeleton.BoneData { return m.data.BoneData }

// Handle returns the vertex array, or device.None.
func (m *Mesh) Handle() device.Handle { return m.vao }

// SetPositions replaces the positions and the vertex count.
func (m *Mesh) SetPositions(p []math.Vec3) {
	m.data.Positions = p
	m.vertexCount = len(p)
	m.touch()
}

// SetNormals replaces the normals.
func (m *Mesh) SetNormals(n []math.Vec3) {
	m.data.Normals = n
	m.touch()
}

// SetTextureCoordinates replaces the texture coordinates.
func (m *Mesh) SetTextureCoordinates(tc []math.Vec2) {
	m.data.TexCoords = tc
	m.touch()
}

// SetColors replaces the vertex colors.
func (m *Mesh) SetColors(c []math.Vec4) {
	m.data.Colors = c
	m.touch()
}

// SetVertexBoneData replaces the per-vertex bone weights.
func (m *Mesh) SetVertexBoneData(b []skeleton.VertexBoneData) {
	m.data.Bones = b
	m.touch()
}

// SetBoneData replaces the bone table.
func (m *Mesh) SetBoneData(d *skeleton.BoneData) {
	if d == nil {
		d = skeleton.NewBoneData()
	}
	m.data.BoneData = d
	m.touch()
}

func (m *Mesh) touch() {
	m.loaded = true
	m.MarkDirty()
}

// validate checks that every non-empty stream has one entry per vertex.
func (m *Mesh) validate() error {
	n := len(m.data.Positions)
	lengths := []struct {
		name string
		len  int
	}{
		{"normals", len(m.data.Normals)},
		{"texture coordinates", len(m.data.TexCoords)},
		{"colors", len(m.data.Colors)},
		{"bone weights", len(m.data.Bones)},
	}
	for _, s := range lengths {
		if s.len != 0 && s.len != n {
			return m.FormatError(resource.ErrStreamLength,
				fmt.Sprintf("%d %s for %d vertices", s.len, s.name, n))
		}
	}
	return nil
}

// streamBytes returns the upload bytes of every stream. Meshes without bone
// weights get DefaultWeight on every slot.
func (m *Mesh) streamBytes() [numStreams][]byte {
	var out [numStreams][]byte
	out[positions] = device.Bytes(m.data.Positions)
	out[normals] = device.Bytes(m.data.Normals)
	out[texCoords] = device.Bytes(m.data.TexCoords)
	out[colors] = device.Bytes(m.data.Colors)
	if len(m.data.Bones) > 0 {
		out[bones] = device.Bytes(m.data.Bones)
	} else {
		out[bones] = device.Bytes(skeleton.DefaultVertexBoneData(len(m.data.Positions)))
	}
	return out
}

func attributes(s stream) []device.Attribute {
	switch s {
	case positions:
		return []device.Attribute{{Index: AttribPosition, Components: 3, Type: device.Float32, Stride: 12}}
	case normals:
		return []device.Attribute{{Index: AttribNormal, Components: 3, Type: device.Float32, Stride: 12}}
	case texCoords:
		return []device.Attribute{{Index: AttribTexCoord, Components: 2, Type: device.Float32, Stride: 8}}
	case colors:
		return []device.Attribute{{Index: AttribColor, Components: 4, Type: device.Float32, Stride: 16}}
	case bones:
		stride := device.SizeOf[skeleton.VertexBoneData](1)
		return []device.Attribute{
			{Index: AttribBoneIDs, Components: skeleton.MaxInfluences, Type: device.Int32, Stride: stride},
			{Index: AttribBoneWeights, Components: skeleton.MaxInfluences, Type: device.Float32, Stride: stride, Offset: 4 * skeleton.MaxInfluences},
		}
	}
	return nil
}

// AllocateVideoMemory creates the vertex array and one buffer per non-empty
// stream, sized to the current vertex count.
func (m *Mesh) AllocateVideoMemory() error {
	if err := m.BeginAllocate(); err != nil {
		return err
	}
	if err := m.validate(); err != nil {
		return err
	}
	if err := m.create(m.streamBytes()); err != nil {
		return err
	}
	m.defaultBones = len(m.data.Bones) == 0
	m.Allocated()
	return nil
}

// create builds the vertex array for data. On a device error every handle
// made so far is released.
func (m *Mesh) create(data [numStreams][]byte) error {
	m.vao = m.dev.CreateVertexArray()
	if err := m.CheckDevice(m.dev, "allocate"); err != nil {
		m.release()
		return err
	}

	for s := stream(0); s < numStreams; s++ {
		if len(data[s]) == 0 {
			continue
		}
		m.buffers[s] = m.dev.CreateBuffer(device.VertexBuffer, len(data[s]))
		for _, attr := range attributes(s) {
			m.dev.AttachVertexBuffer(m.vao, m.buffers[s], attr)
		}
		if err := m.CheckDevice(m.dev, "allocate"); err != nil {
			m.release()
			return err
		}
	}
	m.capacity = m.vertexCount
	return nil
}

func (m *Mesh) release() {
	for s := range m.buffers {
		if m.buffers[s] != device.None {
			m.dev.ReleaseBuffer(m.buffers[s])
			m.buffers[s] = device.None
		}
	}
	if m.vao != device.None {
		m.dev.ReleaseVertexArray(m.vao)
		m.vao = device.None
	}
	m.capacity = 0
}

// PushToVideoMemory uploads every stream. When the vertex count grew past
// the allocation or the set of streams changed, the storage is rebuilt first.
func (m *Mesh) PushToVideoMemory() error {
	if err := m.BeginPush(); err != nil {
		return err
	}
	if m.State() == resource.PushedCurrent {
		return nil
	}
	if !m.loaded {
		return m.stateErrorNoData("push")
	}
	if err := m.validate(); err != nil {
		return err
	}

	data := m.streamBytes()
	if m.needsRebuild(data) {
		logger.Debug("rebuilding mesh storage",
			zap.String("resource", m.name),
			zap.Int("from", m.capacity),
			zap.Int("to", m.vertexCount),
		)
		m.release()
		if err := m.create(data); err != nil {
			m.Freed()
			return err
		}
	}

	for s := stream(0); s < numStreams; s++ {
		if len(data[s]) > 0 {
			m.dev.WriteBuffer(m.buffers[s], 0, data[s])
		}
	}
	if err := m.CheckDevice(m.dev, "push"); err != nil {
		return err
	}
	m.defaultBones = len(m.data.Bones) == 0
	m.Pushed()
	return nil
}

func (m *Mesh) needsRebuild(data [numStreams][]byte) bool {
	if m.vertexCount > m.capacity {
		return true
	}
	for s := range data {
		if (len(data[s]) > 0) != (m.buffers[s] != device.None) {
			return true
		}
	}
	return false
}

func (m *Mesh) stateErrorNoData(op string) error {
	return &resource.StateError{Resource: "mesh " + m.name, Op: op, State: m.State(), Err: ErrNoLocalData}
}

// PullFromVideoMemory reads every uploaded stream back into local data.
// Generated default weights are not read back.
func (m *Mesh) PullFromVideoMemory() error {
	if err := m.BeginPull(); err != nil {
		return err
	}
	n := m.vertexCount

	pos := readStream[math.Vec3](m, positions, n)
	nrm := readStream[math.Vec3](m, normals, n)
	tc := readStream[math.Vec2](m, texCoords, n)
	col := readStream[math.Vec4](m, colors, n)
	var vb []skeleton.VertexBoneData
	if !m.defaultBones {
		vb = readStream[skeleton.VertexBoneData](m, bones, n)
	}

	if err := m.CheckDevice(m.dev, "pull"); err != nil {
		return err
	}
	m.data.Positions, m.data.Normals, m.data.TexCoords, m.data.Colors, m.data.Bones = pos, nrm, tc, col, vb
	m.loaded = true
	return nil
}

// readStream reads n values of stream s, or returns nil when the stream was
// never uploaded.
func readStream[T any](m *Mesh, s stream, n int) []T {
	if m.buffers[s] == device.None {
		return nil
	}
	dst := make([]T, n)
	m.dev.ReadBuffer(m.buffers[s], 0, device.Bytes(dst))
	return dst
}

// FreeVideoMemory releases the vertex array and its buffers.
func (m *Mesh) FreeVideoMemory() error {
	ok, err := m.BeginFree()
	if !ok {
		return err
	}
	m.release()
	m.Freed()
	return nil
}

// FreeLocalData drops the local streams. The vertex count and bone table
// are kept for drawing.
func (m *Mesh) FreeLocalData() {
	bd := m.data.BoneData
	m.data = Data{BoneData: bd}
	m.loaded = false
}

// Render draws the mesh as triangles with whatever is currently bound.
func (m *Mesh) Render() error {
	if err := m.BeginBind(); err != nil {
		return err
	}
	m.dev.DrawArrays(m.vao, m.vertexCount)
	return nil
}
