package skeleton

import (
	"errors"
	"testing"

	"github.com/Faultbox/glr/pkg/math"
)

func TestNewBuildsChildrenInOrder(t *testing.T) {
	h, err := New([]Joint{
		{Name: "root", Transform: math.Identity(), Parent: -1},
		{Name: "spine", Transform: math.Translate(0, 1, 0), Parent: 0},
		{Name: "arm.l", Transform: math.Identity(), Parent: 1},
		{Name: "arm.r", Transform: math.Identity(), Parent: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if h.Len() != 4 || h.Root() != 0 {
		t.Fatalf("Len/Root = %d/%d", h.Len(), h.Root())
	}
	kids := h.Bone(1).Children
	if len(kids) != 2 || kids[0] != 2 || kids[1] != 3 {
		t.Errorf("spine children = %v, want [2 3]", kids)
	}
	if i, ok := h.Lookup("arm.r"); !ok || i != 3 {
		t.Errorf("Lookup(arm.r) = %d, %v", i, ok)
	}
}

func TestWalkParentFirst(t *testing.T) {
	// Root is listed last to make sure order comes from the tree.
	h, err := New([]Joint{
		{Name: "hand", Parent: 1},
		{Name: "arm", Parent: 2},
		{Name: "root", Parent: -1},
		{Name: "leg", Parent: 2},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var order []string
	h.Walk(func(_ int, b *Bone) { order = append(order, b.Name) })

	want := []string{"root", "arm", "hand", "leg"}
	if len(order) != len(want) {
		t.Fatalf("visited %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		joints []Joint
		want   error
	}{
		{"duplicate", []Joint{{Name: "a", Parent: -1}, {Name: "a", Parent: 0}}, ErrDuplicateBone},
		{"two roots", []Joint{{Name: "a", Parent: -1}, {Name: "b", Parent: -1}}, ErrRoot},
		{"no root", []Joint{{Name: "a", Parent: 1}, {Name: "b", Parent: 0}}, ErrRoot},
		{"self parent", []Joint{{Name: "a", Parent: -1}, {Name: "b", Parent: 1}}, ErrBadParent},
		{"out of range", []Joint{{Name: "a", Parent: -1}, {Name: "b", Parent: 7}}, ErrBadParent},
		{"cycle", []Joint{{Name: "r", Parent: -1}, {Name: "a", Parent: 2}, {Name: "b", Parent: 1}}, ErrCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.joints)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEmptyHierarchy(t *testing.T) {
	h, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil): %v", err)
	}
	if h.Len() != 0 || h.Root() != -1 {
		t.Errorf("Len/Root = %d/%d", h.Len(), h.Root())
	}
	called := false
	h.Walk(func(int, *Bone) { called = true })
	if called {
		t.Error("Walk on empty hierarchy should visit nothing")
	}
}

func TestJointsRoundTrip(t *testing.T) {
	in := []Joint{{Name: "root", Transform: math.Identity(), Parent: -1}, {Name: "tip", Transform: math.Translate(1, 0, 0), Parent: 0}}
	h, err := New(in)
	if err != nil {
		t.Fatal(err)
	}
	out := h.Joints()
	if len(out) != 2 || out[1] != in[1] {
		t.Errorf("Joints() = %+v", out)
	}
}

func TestBoneDataStableIndices(t *testing.T) {
	d := NewBoneData()
	if d.Add("hip", math.Identity()) != 0 || d.Add("knee", math.Identity()) != 1 {
		t.Fatal("slots should follow insertion order")
	}

	offset := math.Translate(0, -1, 0)
	if d.Add("hip", offset) != 0 {
		t.Error("re-adding should keep the slot")
	}
	info, ok := d.Lookup("hip")
	if !ok || info.Offset != offset {
		t.Errorf("Lookup(hip) = %+v, %v", info, ok)
	}
	if d.Len() != 2 {
		t.Errorf("Len = %d, want 2", d.Len())
	}

	var nilData *BoneData
	if nilData.Len() != 0 {
		t.Error("nil BoneData should have length 0")
	}
	if _, ok := nilData.Lookup("hip"); ok {
		t.Error("nil BoneData lookup should fail")
	}
}

func TestBoneDataZeroValue(t *testing.T) {
	var d BoneData
	if _, ok := d.Lookup("hip"); ok {
		t.Error("empty table lookup should fail")
	}
	if d.Add("hip", math.Identity()) != 0 || d.Add("knee", math.Identity()) != 1 {
		t.Fatal("zero value should hand out slots from 0")
	}
	if info, ok := d.Lookup("knee"); !ok || info.Index != 1 {
		t.Errorf("Lookup(knee) = %+v, %v", info, ok)
	}
	if c := d.Clone(); c.Len() != 2 {
		t.Errorf("clone has %d bones", c.Len())
	}
}

func TestVertexBoneData(t *testing.T) {
	var v VertexBoneData
	for i := int32(0); i < MaxInfluences; i++ {
		if !v.AddWeight(i, 0.2) {
			t.Fatalf("slot %d should be free", i)
		}
	}
	if v.AddWeight(9, 0.2) {
		t.Error("fifth influence should be rejected")
	}

	def := DefaultVertexBoneData(3)
	if len(def) != 3 {
		t.Fatalf("len = %d", len(def))
	}
	for _, w := range def[2].Weights {
		if w != DefaultWeight {
			t.Errorf("default weight = %v, want %v", w, DefaultWeight)
		}
	}
	if def[0].IDs != [MaxInfluences]int32{} {
		t.Error("default ids should be 0")
	}
}
