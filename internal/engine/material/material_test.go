package material

import (
	"errors"
	"testing"

	"github.com/Faultbox/glr/internal/engine/device"
	"github.com/Faultbox/glr/internal/engine/device/memdevice"
	"github.com/Faultbox/glr/internal/engine/resource"
	"github.com/Faultbox/glr/pkg/math"
)

func TestLayoutIsStd140(t *testing.T) {
	if Size != 80 {
		t.Errorf("Size = %d, want 80", Size)
	}
}

func TestMaterialLifecycle(t *testing.T) {
	dev := memdevice.New()
	props := Default()
	props.Diffuse = math.Vec4{X: 0.5, Y: 0.25, Z: 1, W: 1}
	m := New(dev, "cloth", props)

	if err := m.Bind(2); !errors.Is(err, resource.ErrNotAllocated) {
		t.Fatalf("bind before allocate: got %v", err)
	}
	if err := m.AllocateVideoMemory(); err != nil {
		t.Fatal(err)
	}
	if err := m.PushToVideoMemory(); err != nil {
		t.Fatal(err)
	}

	m.FreeLocalData()
	if err := m.PullFromVideoMemory(); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if m.Properties().Diffuse != props.Diffuse {
		t.Errorf("pulled diffuse %v, want %v", m.Properties().Diffuse, props.Diffuse)
	}

	m.SetProperties(Default())
	if !m.IsDirty() {
		t.Error("SetProperties should mark dirty")
	}

	if err := m.FreeVideoMemory(); err != nil {
		t.Fatal(err)
	}
	if err := m.FreeVideoMemory(); err != nil {
		t.Errorf("second free should be a no-op, got %v", err)
	}
	if dev.Live().Buffers != 0 {
		t.Error("buffer leaked")
	}
}

func TestMaterialDeviceError(t *testing.T) {
	dev := memdevice.New()
	m := New(dev, "cloth", Default())
	if err := m.AllocateVideoMemory(); err != nil {
		t.Fatal(err)
	}

	dev.FailNext(memdevice.OpWriteBuffer, device.CodeInvalidValue)
	var de *resource.DeviceError
	if err := m.PushToVideoMemory(); !errors.As(err, &de) || de.Op != "push" {
		t.Fatalf("got %v, want DeviceError on push", err)
	}
	if m.State() == resource.PushedCurrent {
		t.Error("failed push should not mark the material current")
	}
}
