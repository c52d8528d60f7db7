package deferred

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Projection defaults.
const (
	DefaultFOV  = 45
	DefaultNear = 0.5
	DefaultFar  = 100
)

// glToZeroOne maps OpenGL clip depth [-w, w] to [0, w].
var glToZeroOne = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Projection returns a right-handed perspective matrix with clip-space
// depth in [0, 1]. fov is the vertical field of view in degrees.
func Projection(fov, aspect, near, far float32) mgl32.Mat4 {
	return glToZeroOne.Mul4(mgl32.Perspective(mgl32.DegToRad(fov), aspect, near, far))
}

// ModelMatrix returns the scene rotation at time t seconds: t radians
// around +Y.
func ModelMatrix(t float64) mgl32.Mat4 {
	return mgl32.HomogRotate3D(float32(t), mgl32.Vec3{0, 1, 0})
}

// NormalMatrix returns the inverse transpose of m, for transforming
// normals with w = 0.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat4 {
	return m.Inv().Transpose()
}

// DefaultView is the view matrix used when no camera is attached.
func DefaultView() mgl32.Mat4 {
	return mgl32.LookAtV(mgl32.Vec3{0, 2, 8.5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
}
