// Package anim samples MMD motion data against a model's skeleton and
// morph list.
//
// Tracks are built once by an importer and are read-only afterwards, so an
// Animation or CameraAnimation can be shared between goroutines.
package anim

import "github.com/Faultbox/headless-mmd/pkg/formats"

// BezierIterations is the number of Newton-Raphson steps Bezier takes.
const BezierIterations = 8

// easeRange is the largest control byte value; it maps to 1.
const easeRange = 127

// Bezier evaluates an MMD interpolation curve. The curve runs from (0,0) to
// (1,1) with control points (x1,y1) and (x2,y2); Bezier solves for the curve
// parameter whose x equals x and returns the y at that parameter.
func Bezier(x, x1, x2, y1, y2 float32) float32 {
	t := x
	for range BezierIterations {
		slope := bezierSlope(t, x1, x2)
		if slope == 0 {
			break
		}
		t -= (bezier(t, x1, x2) - x) / slope
	}
	return bezier(t, y1, y2)
}

// Ease evaluates the curve stored in a VMD interpolation descriptor.
func Ease(x float32, e formats.Ease) float32 {
	return Bezier(x,
		float32(e.X1)/easeRange, float32(e.X2)/easeRange,
		float32(e.Y1)/easeRange, float32(e.Y2)/easeRange)
}

func bezier(t, p1, p2 float32) float32 {
	t2 := t * t
	t3 := t2 * t
	return 3*p1*(t3-2*t2+t) + 3*p2*(-t3+t2) + t3
}

func bezierSlope(t, p1, p2 float32) float32 {
	t2 := t * t
	return 3*p1*(3*t2-4*t+1) + 3*p2*(-3*t2+2*t) + 3*t2
}
