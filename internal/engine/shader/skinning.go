package shader

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/mesh"
	"github.com/Faultbox/glr/internal/logger"
	"github.com/Faultbox/glr/pkg/math"
)

// MaxBones is the largest pose the skinning program accepts: 16 KiB, the
// smallest uniform block size GL guarantees, of mat4.
const MaxBones = 16384 / math.Mat4Size

// Block names in the skinning program.
const (
	BonesBlock    = "Bones"
	MaterialBlock = "Material"
)

const skinningVertex = `#version 410 core
#define MAX_BONES %d

layout(location = 0) in vec3 aPosition;
layout(location = 1) in vec3 aNormal;
layout(location = 2) in vec2 aTexCoord;
layout(location = 3) in vec4 aColor;
layout(location = 4) in ivec4 aBoneIDs;
layout(location = 5) in vec4 aBoneWeights;

layout(std140) uniform Bones {
	mat4 uBones[MAX_BONES];
};

uniform mat4 uModel;
uniform mat4 uViewProj;

out vec3 vNormal;
out vec2 vTexCoord;
out vec4 vColor;

void main() {
	mat4 skin = mat4(0.0);
	for (int i = 0; i < 4; i++) {
		skin += uBones[aBoneIDs[i]] * aBoneWeights[i];
	}
	vec4 world = uModel * skin * vec4(aPosition, 1.0);
	vNormal = mat3(uModel * skin) * aNormal;
	vTexCoord = aTexCoord;
	vColor = aColor;
	gl_Position = uViewProj * world;
}
`

const skinningFragment = `#version 410 core

layout(std140) uniform Material {
	vec4 ambient;
	vec4 diffuse;
	vec4 specular;
	vec4 emission;
	float shininess;
	float strength;
};

uniform sampler2DArray uTexture;
uniform int uLayer;
uniform bool uTextured;
uniform vec3 uLightDir;

in vec3 vNormal;
in vec2 vTexCoord;
in vec4 vColor;

out vec4 FragColor;

void main() {
	vec4 base = diffuse;
	if (uTextured) {
		base *= texture(uTexture, vec3(vTexCoord, float(uLayer)));
	}
	base *= vColor;
	vec3 n = normalize(vNormal);
	float lambert = max(dot(n, -normalize(uLightDir)), 0.0);
	vec3 color = ambient.rgb * base.rgb + lambert * base.rgb + emission.rgb;
	FragColor = vec4(color, base.a);
}
`

// Bindings are the binding points the program's blocks and sampler use.
type Bindings struct {
	Bones       uint32
	Material    uint32
	TextureUnit int32
}

// Skinning is the linear blend skinning program.
type Skinning struct {
	ID uint32

	locModel    int32
	locViewProj int32
	locTexture  int32
	locLayer    int32
	locTextured int32
	locLightDir int32
}

// NewSkinning compiles the program for poses of up to maxBones matrices and
// binds its blocks.
func NewSkinning(maxBones int, b Bindings) (*Skinning, error) {
	if maxBones <= 0 || maxBones > MaxBones {
		return nil, fmt.Errorf("max bones %d outside 1..%d", maxBones, MaxBones)
	}
	id, err := CompileProgram(fmt.Sprintf(skinningVertex, maxBones), skinningFragment)
	if err != nil {
		return nil, fmt.Errorf("skinning program: %w", err)
	}

	s := &Skinning{
		ID:          id,
		locModel:    Uniform(id, "uModel"),
		locViewProj: Uniform(id, "uViewProj"),
		locTexture:  Uniform(id, "uTexture"),
		locLayer:    Uniform(id, "uLayer"),
		locTextured: Uniform(id, "uTextured"),
		locLightDir: Uniform(id, "uLightDir"),
	}
	if err := BindBlock(id, BonesBlock, b.Bones); err != nil {
		gl.DeleteProgram(id)
		return nil, err
	}
	if err := BindBlock(id, MaterialBlock, b.Material); err != nil {
		gl.DeleteProgram(id)
		return nil, err
	}

	// Meshes without a color stream read the current generic value.
	gl.VertexAttrib4f(mesh.AttribColor, 1, 1, 1, 1)

	gl.UseProgram(id)
	gl.Uniform1i(s.locTexture, b.TextureUnit)
	gl.Uniform3f(s.locLightDir, -0.3, -1, -0.5)

	logger.Debug("skinning program linked",
		zap.Uint32("program", id),
		zap.Int("maxBones", maxBones),
		zap.Uint32("bonesBinding", b.Bones),
		zap.Uint32("materialBinding", b.Material),
	)
	return s, nil
}

// Use makes the program current.
func (s *Skinning) Use() {
	gl.UseProgram(s.ID)
}

// SetViewProj sets the camera matrix.
func (s *Skinning) SetViewProj(m math.Mat4) {
	gl.UniformMatrix4fv(s.locViewProj, 1, false, m.Ptr())
}

// SetModel sets the world matrix of the next draws.
func (s *Skinning) SetModel(m math.Mat4) {
	gl.UniformMatrix4fv(s.locModel, 1, false, m.Ptr())
}

// SetLightDir sets the direction light travels in world space.
func (s *Skinning) SetLightDir(d math.Vec3) {
	gl.Uniform3f(s.locLightDir, d.X, d.Y, d.Z)
}

// SetLayer selects the texture array layer; a negative layer draws
// untextured.
func (s *Skinning) SetLayer(layer int32) {
	textured := int32(0)
	if layer >= 0 {
		textured = 1
		gl.Uniform1i(s.locLayer, layer)
	}
	gl.Uniform1i(s.locTextured, textured)
}

// Delete frees the program.
func (s *Skinning) Delete() {
	gl.DeleteProgram(s.ID)
}
