package record

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/assets"
	"github.com/Faultbox/glr/internal/engine/model"
	"github.com/Faultbox/glr/internal/engine/skeleton"
	"github.com/Faultbox/glr/internal/engine/texture"
	"github.com/Faultbox/glr/internal/logger"
	"github.com/Faultbox/glr/pkg/math"
)

// assetName qualifies a rig-local name so rigs sharing a context do not
// collide.
func (r *Rig) assetName(parts ...string) string {
	name := r.Name
	for _, p := range parts {
		name += "/" + p
	}
	return name
}

func (r *Rig) texturePath(p string) string {
	if filepath.IsAbs(p) || r.BaseDir == "" {
		return p
	}
	return filepath.Join(r.BaseDir, p)
}

// Instantiate adds the rig's assets to ctx and returns a model using them.
// Assets already present under the same rig name are reused. With
// initialize set every new asset is allocated and pushed, which must happen
// on the device thread.
func (r *Rig) Instantiate(ctx *assets.Context, initialize bool) (*model.Model, error) {
	h, err := ToHierarchy(r.Bones)
	if err != nil {
		return nil, fmt.Errorf("rig %q: %w", r.Name, err)
	}
	skin := ToBoneData(r.Skin)

	m := model.New(ctx, r.Name, h)
	if r.GlobalInverse != nil {
		m.SetGlobalInverse(math.Mat4(*r.GlobalInverse))
	}

	for _, rec := range r.Meshes {
		slot, err := r.addMesh(ctx, rec, skin, initialize)
		if err != nil {
			return nil, fmt.Errorf("rig %q: %w", r.Name, err)
		}
		m.AddMesh(slot)
	}

	for _, rec := range r.Animations {
		clip := rec.Name
		rec.Name = r.assetName("anim", clip)
		track, err := ToTrack(rec)
		if err != nil {
			return nil, fmt.Errorf("rig %q: %w", r.Name, err)
		}
		ah, err := ctx.AddAnimation(track, initialize)
		if err != nil {
			return nil, err
		}
		if err := m.AddAnimationAs(clip, ah); err != nil {
			return nil, err
		}
	}

	logger.Info("rig instantiated",
		zap.String("rig", r.Name),
		zap.Int("bones", h.Len()),
		zap.Int("meshes", len(r.Meshes)),
		zap.Int("animations", len(r.Animations)),
	)
	return m, nil
}

func (r *Rig) addMesh(ctx *assets.Context, rec Mesh, skin *skeleton.BoneData, initialize bool) (model.Slot, error) {
	var slot model.Slot
	var err error

	slot.Mesh, err = ctx.AddMesh(r.assetName(rec.Name), ToMeshData(rec, skin), initialize)
	if err != nil {
		return slot, err
	}

	if len(rec.Textures) > 0 {
		layers := make([]texture.Image, 0, len(rec.Textures))
		for _, p := range rec.Textures {
			img, err := texture.Load(r.texturePath(p), rec.MagentaKey)
			if err != nil {
				return slot, fmt.Errorf("mesh %q: %w", rec.Name, err)
			}
			layers = append(layers, img)
		}
		slot.Texture, err = ctx.AddTexture(r.assetName(rec.Name, "texture"), layers, initialize)
		if err != nil {
			return slot, err
		}
	}

	if rec.Material != nil {
		slot.Material, err = ctx.AddMaterial(r.assetName(rec.Name, "material"), ToMaterial(rec.Material), initialize)
		if err != nil {
			return slot, err
		}
	}
	return slot, nil
}
