package assets

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/glr/internal/engine/animation"
	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/engine/material"
	"github.com/Faultbox/glr/internal/engine/mesh"
	"github.com/Faultbox/glr/internal/engine/resource"
	"github.com/Faultbox/glr/internal/engine/texture"
	"github.com/Faultbox/glr/internal/logger"
)

// DefaultMaxBones sizes the identity animation.
const DefaultMaxBones = 100

// Context owns the device and every asset allocated on it. Assets may be
// added from any goroutine with initialize false; anything that touches the
// device must run on the device thread.
type Context struct {
	dev device.Device

	Meshes     *Registry[*mesh.Mesh]
	Textures   *Registry[*texture.Array]
	Materials  *Registry[*material.Material]
	Animations *Registry[*animation.Animation]

	identity *animation.Animation
}

// NewContext returns an empty context on dev. maxBones <= 0 uses
// DefaultMaxBones.
func NewContext(dev device.Device, maxBones int) *Context {
	if maxBones <= 0 {
		maxBones = DefaultMaxBones
	}
	return &Context{
		dev:        dev,
		Meshes:     NewRegistry[*mesh.Mesh](),
		Textures:   NewRegistry[*texture.Array](),
		Materials:  NewRegistry[*material.Material](),
		Animations: NewRegistry[*animation.Animation](),
		identity:   animation.NewIdentity(dev, maxBones),
	}
}

// Device returns the device assets are allocated on.
func (c *Context) Device() device.Device { return c.dev }

// IdentityAnimation returns the animation bound to meshes with nothing
// playing.
func (c *Context) IdentityAnimation() *animation.Animation { return c.identity }

// add registers the asset built by create. When the name is new and
// initialize is set, the asset is allocated and pushed; a failure removes
// it again.
func add[T resource.Resource](r *Registry[T], name string, create func() T, initialize bool) (Handle[T], error) {
	h, added := r.Add(name, create())
	if !added {
		return h, nil
	}
	if !initialize {
		return h, nil
	}

	v, _ := r.Get(h)
	if err := initializeResource(v); err != nil {
		r.Remove(h)
		return Handle[T]{}, fmt.Errorf("initialize %q: %w", name, err)
	}
	logger.Debug("asset initialized", zap.String("resource", name))
	return h, nil
}

func initializeResource(v resource.Resource) error {
	if err := v.AllocateVideoMemory(); err != nil {
		return err
	}
	if err := v.PushToVideoMemory(); err != nil {
		_ = v.FreeVideoMemory()
		return err
	}
	return nil
}

// Initialize allocates and pushes an asset that was added without it.
func Initialize(v resource.Resource) error {
	if v.State() != resource.Unallocated {
		return v.PushToVideoMemory()
	}
	return initializeResource(v)
}

// AddMesh registers a mesh under name.
func (c *Context) AddMesh(name string, data mesh.Data, initialize bool) (Handle[*mesh.Mesh], error) {
	return add(c.Meshes, name, func() *mesh.Mesh { return mesh.New(c.dev, name, data) }, initialize)
}

// AddTexture registers a texture array under name.
func (c *Context) AddTexture(name string, layers []texture.Image, initialize bool) (Handle[*texture.Array], error) {
	return add(c.Textures, name, func() *texture.Array { return texture.NewArray(c.dev, name, layers) }, initialize)
}

// AddMaterial registers a material under name.
func (c *Context) AddMaterial(name string, props material.Properties, initialize bool) (Handle[*material.Material], error) {
	return add(c.Materials, name, func() *material.Material { return material.New(c.dev, name, props) }, initialize)
}

// AddAnimation registers track under its name.
func (c *Context) AddAnimation(track *animation.Track, initialize bool) (Handle[*animation.Animation], error) {
	return add(c.Animations, track.Name(), func() *animation.Animation { return animation.New(c.dev, track) }, initialize)
}

// Mesh resolves a mesh handle.
func (c *Context) Mesh(h Handle[*mesh.Mesh]) (*mesh.Mesh, bool) { return c.Meshes.Get(h) }

// Texture resolves a texture handle.
func (c *Context) Texture(h Handle[*texture.Array]) (*texture.Array, bool) { return c.Textures.Get(h) }

// Material resolves a material handle.
func (c *Context) Material(h Handle[*material.Material]) (*material.Material, bool) {
	return c.Materials.Get(h)
}

// Animation resolves an animation handle.
func (c *Context) Animation(h Handle[*animation.Animation]) (*animation.Animation, bool) {
	return c.Animations.Get(h)
}

// remove drops an asset and frees its device memory.
func remove[T resource.Resource](r *Registry[T], h Handle[T]) error {
	v, ok := r.Remove(h)
	if !ok {
		return fmt.Errorf("remove %v: %w", h, ErrStaleHandle)
	}
	return release(v)
}

func release(v resource.Resource) error {
	if v.State() == resource.Unallocated {
		return nil
	}
	return v.FreeVideoMemory()
}

// RemoveMesh frees and drops a mesh.
func (c *Context) RemoveMesh(h Handle[*mesh.Mesh]) error { return remove(c.Meshes, h) }

// RemoveTexture frees and drops a texture array.
func (c *Context) RemoveTexture(h Handle[*texture.Array]) error { return remove(c.Textures, h) }

// RemoveMaterial frees and drops a material.
func (c *Context) RemoveMaterial(h Handle[*material.Material]) error {
	return remove(c.Materials, h)
}

// RemoveAnimation frees and drops an animation.
func (c *Context) RemoveAnimation(h Handle[*animation.Animation]) error {
	return remove(c.Animations, h)
}

// Close frees the device memory of every asset. Assets stay registered so
// they can be initialized again.
func (c *Context) Close() error {
	var errs []error
	collect := func(v resource.Resource) {
		if err := release(v); err != nil {
			errs = append(errs, err)
		}
	}
	c.Meshes.Each(func(_ Handle[*mesh.Mesh], m *mesh.Mesh) { collect(m) })
	c.Textures.Each(func(_ Handle[*texture.Array], t *texture.Array) { collect(t) })
	c.Materials.Each(func(_ Handle[*material.Material], m *material.Material) { collect(m) })
	c.Animations.Each(func(_ Handle[*animation.Animation], a *animation.Animation) { collect(a) })
	collect(c.identity)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Info("asset context closed",
		zap.Int("meshes", c.Meshes.Len()),
		zap.Int("textures", c.Textures.Len()),
		zap.Int("materials", c.Materials.Len()),
		zap.Int("animations", c.Animations.Len()),
	)
	return nil
}
