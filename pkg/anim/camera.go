package anim

import (
	gomath "math"

	"github.com/Faultbox/headless-mmd/pkg/formats"
	"github.com/Faultbox/headless-mmd/pkg/math"
)

// CameraState is a decoded camera: eye position, basis vectors and the
// vertical field of view in degrees.
type CameraState struct {
	Position math.Vec3
	Forward  math.Vec3
	Up       math.Vec3
	FoV      float32
}

// View returns a view matrix looking along Forward.
func (c CameraState) View() math.Mat4 {
	return math.LookAt(c.Position, c.Position.Add(c.Forward), c.Up)
}

// Projection returns a perspective matrix for the camera's field of view.
func (c CameraState) Projection(aspect, near, far float32) math.Mat4 {
	return math.Perspective(c.FoV*gomath.Pi/180, aspect, near, far)
}

// CameraAnimation samples a VMD camera track.
type CameraAnimation struct {
	track Track[formats.CameraKey]
}

// NewCameraAnimation builds a camera animation from keys in any order. With
// no keys it holds MMD's default camera.
func NewCameraAnimation(keys []formats.CameraKey) *CameraAnimation {
	c := &CameraAnimation{}
	for _, k := range keys {
		c.track.Insert(int(k.Frame), k)
	}
	if c.track.Empty() {
		c.track.Insert(0, formats.DefaultCameraKey(0))
	}
	return c
}

// NumFrames returns the last keyed frame plus one.
func (c *CameraAnimation) NumFrames() int {
	return c.track.LastFrame() + 1
}

// CameraAt returns the camera at frame. Between keys each channel is eased
// with the curve stored on the later key; the view angle is truncated to a
// whole degree.
func (c *CameraAnimation) CameraAt(frame int) CameraState {
	prev, next, s := c.track.Search(frame)
	if s == 0 {
		return decodeCamera(prev.Position, prev.Rotation, prev.Distance, prev.ViewAngle)
	}

	vx := Ease(s, next.X)
	vy := Ease(s, next.Y)
	vz := Ease(s, next.Z)
	vr := Ease(s, next.R)
	vd := Ease(s, next.Dist)
	vv := Ease(s, next.Angle)

	pos := math.Vec3{
		X: LerpFloat(prev.Position.X, next.Position.X, vx),
		Y: LerpFloat(prev.Position.Y, next.Position.Y, vy),
		Z: LerpFloat(prev.Position.Z, next.Position.Z, vz),
	}
	rot := math.Vec3{
		X: LerpFloat(prev.Rotation.X, next.Rotation.X, vr),
		Y: LerpFloat(prev.Rotation.Y, next.Rotation.Y, vr),
		Z: LerpFloat(prev.Rotation.Z, next.Rotation.Z, vr),
	}
	dist := LerpFloat(prev.Distance, next.Distance, vd)
	angle := int32(LerpFloat(float32(prev.ViewAngle), float32(next.ViewAngle), vv))

	return decodeCamera(pos, rot, dist, angle)
}

// decodeCamera turns MMD's orbit camera (target, euler angles, distance)
// into an eye position and basis. VMD angles rotate the opposite way to
// the math package, hence the negation.
func decodeCamera(target, rotation math.Vec3, distance float32, viewAngle int32) CameraState {
	q := math.QuatFromEuler(-rotation.X, -rotation.Y, -rotation.Z)
	forward := q.Rotate(math.Vec3{Z: 1})
	return CameraState{
		Position: target.Add(forward.Scale(distance)),
		Forward:  forward,
		Up:       q.Rotate(math.Vec3{Y: 1}),
		FoV:      float32(viewAngle),
	}
}
