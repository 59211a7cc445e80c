package components

import (
	m "math"

	"github.com/spaghettifunk/usu/engine/math"
)

/**
 * @brief A camera looking at a fixed target. The view matrix is rebuilt
 * lazily after the position changes.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	Target   math.Vec3
	/** @brief Vertical field of view in radians. */
	FieldOfView float32
	Near        float32
	Far         float32
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool
	/**
	 * @brief The view matrix of this camera.
	 * NOTE: IMPORTANT: Do not get this directly, use GetView() instead
	 * so the view matrix is recalculated when needed.
	 */
	ViewMatrix math.Mat4
}

// NewCamera places the camera on +Z, far enough from the origin for a
// sphere of the given radius to fill the vertical field of view.
func NewCamera(fovDegrees, near, far, radius float32) *Camera {
	camera := &Camera{
		FieldOfView: math.DegToRad(fovDegrees),
		Near:        near,
	}
	if radius <= 0 {
		radius = 1
	}
	distance := radius/float32(m.Sin(float64(camera.FieldOfView)*0.5)) + near
	camera.Far = max(far, distance+radius*4)
	camera.Reset()
	camera.SetPosition(math.NewVec3(0, 0, distance))
	return camera
}

func (c *Camera) Reset() {
	c.Position = math.NewVec3Zero()
	c.Target = math.NewVec3Zero()
	c.IsDirty = false
	c.ViewMatrix = math.NewMat4Identity()
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		c.ViewMatrix = math.NewMat4LookAt(c.Position, c.Target, math.NewVec3Up())
		c.IsDirty = false
	}
	return c.ViewMatrix
}

func (c *Camera) Projection(aspect float32) math.Mat4 {
	return math.NewMat4Perspective(c.FieldOfView, aspect, c.Near, c.Far)
}

// MoveForward moves towards the target, stopping at the near plane.
func (c *Camera) MoveForward(amount float32) {
	offset := c.Position.Sub(c.Target)
	distance := max(offset.Length()-amount, c.Near)
	c.Position = c.Target.Add(offset.Normalized().MulScalar(distance))
	c.IsDirty = true
}
