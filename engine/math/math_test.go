package math

import (
	m "math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 1, 3))
	assert.Equal(t, 1, Clamp(-2, 1, 3))
	assert.Equal(t, float32(2.5), Clamp(float32(2.5), 1, 3))
}

func TestWrapAngle(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{m.Pi / 2, m.Pi / 2},
		{m.Pi + 0.5, -m.Pi + 0.5},
		{-m.Pi - 0.5, m.Pi - 0.5},
		{4*m.Pi + 1, 1},
	}
	for _, c := range cases {
		got := WrapAngle(c.in)
		assert.InDelta(t, c.want, got, 1e-9, "WrapAngle(%v)", c.in)
		assert.True(t, got >= -m.Pi && got <= m.Pi)
	}
}

func TestWrapAngleFloat32StaysInRange(t *testing.T) {
	a := float32(0)
	for i := 0; i < 10000; i++ {
		a = WrapAngle(a + 0.37)
		assert.True(t, a >= -K_PI && a <= K_PI, "step %d: %v", i, a)
	}
}

func TestMat4MulIdentity(t *testing.T) {
	s := NewMat4Scale(NewVec3(2, 3, 4)).Mul(NewMat4Translation(NewVec3(1, 2, 3)))
	assert.Equal(t, s, s.Mul(NewMat4Identity()))
	assert.Equal(t, s, NewMat4Identity().Mul(s))
}

func TestMat4ComposesLeftToRight(t *testing.T) {
	// scale first, then translate
	mt := NewMat4Scale(NewVec3(2, 2, 2)).Mul(NewMat4Translation(NewVec3(1, 0, 0)))
	got := NewVec3(1, 1, 1).Transform(mt)
	assert.True(t, got.Compare(NewVec3(3, 2, 2), 1e-6), "%v", got)
}

func TestLookAtPlacesTargetInFront(t *testing.T) {
	view := NewMat4LookAt(NewVec3(0, 0, 3), NewVec3Zero(), NewVec3Up())
	origin := NewVec3Zero().Transform(view)
	assert.True(t, origin.Compare(NewVec3(0, 0, -3), 1e-6), "%v", origin)

	up := NewVec3(0, 1, 0).Transform(view)
	assert.InDelta(t, 1.0, up.Y, 1e-6)
}

func TestPerspectiveDepthRange(t *testing.T) {
	near, far := float32(0.1), float32(100)
	proj := NewMat4Perspective(DegToRad(60), 16.0/9.0, near, far)

	n := NewVec3(0, 0, -near).ToVec4(1).Transform(proj)
	f := NewVec3(0, 0, -far).ToVec4(1).Transform(proj)
	assert.InDelta(t, 0.0, n.Z/n.W, 1e-5)
	assert.InDelta(t, 1.0, f.Z/f.W, 1e-5)
}

func TestPerspectiveFlipsY(t *testing.T) {
	proj := NewMat4Perspective(DegToRad(90), 1, 0.1, 10)
	p := NewVec3(0, 1, -1).ToVec4(1).Transform(proj)
	assert.Less(t, p.Y/p.W, float32(0))
}

func TestTransposed(t *testing.T) {
	mt := NewMat4Translation(NewVec3(1, 2, 3))
	tr := mt.Transposed()
	assert.Equal(t, float32(1), tr.Data[3])
	assert.Equal(t, float32(2), tr.Data[7])
	assert.Equal(t, float32(3), tr.Data[11])
	assert.Equal(t, mt, tr.Transposed())
}

func TestExtents(t *testing.T) {
	e := ExtentsOf([]Vec3{{-1, 0, 2}, {1, 4, -2}, {0, 1, 0}})
	assert.Equal(t, Vec3{-1, 0, -2}, e.Min)
	assert.Equal(t, Vec3{1, 4, 2}, e.Max)
	assert.Equal(t, Vec3{0, 2, 0}, e.Center())
	assert.Equal(t, Extents3D{}, ExtentsOf(nil))
}

func TestFaceNormal(t *testing.T) {
	n := FaceNormal(NewVec3(0, 0, 0), NewVec3(1, 0, 0), NewVec3(0, 1, 0))
	assert.True(t, n.Compare(NewVec3(0, 0, 1), 1e-6))
}
