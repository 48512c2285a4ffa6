package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// EulerToMatrix builds rotation for XYZ euler order in degrees (x applied first)
func EulerToMatrix(degrees mgl64.Vec3) mgl64.Mat4 {
	x := mgl64.DegToRad(degrees[0])
	y := mgl64.DegToRad(degrees[1])
	z := mgl64.DegToRad(degrees[2])
	return mgl64.HomogRotate3DZ(z).Mul4(mgl64.HomogRotate3DY(y)).Mul4(mgl64.HomogRotate3DX(x))
}

func (n *Node) translationRotation() mgl64.Mat4 {
	return mgl64.Translate3D(n.Translation[0], n.Translation[1], n.Translation[2]).Mul4(EulerToMatrix(n.Rotation))
}

func (n *Node) LocalTransform() mgl64.Mat4 {
	return n.translationRotation().Mul4(mgl64.Scale3D(n.Scaling[0], n.Scaling[1], n.Scaling[2]))
}

// EvaluateGlobalTransform composes local transforms from the root down to n
func EvaluateGlobalTransform(n *Node) mgl64.Mat4 {
	if n.Parent == nil {
		return n.LocalTransform()
	}
	parent := EvaluateGlobalTransform(n.Parent)
	if n.InheritType == InheritRrs {
		parent = withoutScale(parent)
	}
	return parent.Mul4(n.LocalTransform())
}

func withoutScale(m mgl64.Mat4) mgl64.Mat4 {
	for col := 0; col < 3; col++ {
		axis := m.Col(col).Vec3()
		if l := axis.Len(); l > 1e-12 {
			axis = axis.Mul(1 / l)
		}
		m.SetCol(col, axis.Vec4(0))
	}
	return m
}

// MatrixToEuler decomposes rotation part of m into XYZ euler degrees, inverse of EulerToMatrix
func MatrixToEuler(m mgl64.Mat4) mgl64.Vec3 {
	m = withoutScale(m)
	var x, y, z float64
	sy := -m.At(2, 0)
	if sy > 1 {
		sy = 1
	} else if sy < -1 {
		sy = -1
	}
	y = math.Asin(sy)
	if math.Abs(sy) < 0.9999999 {
		x = math.Atan2(m.At(2, 1), m.At(2, 2))
		z = math.Atan2(m.At(1, 0), m.At(0, 0))
	} else {
		// gimbal lock, put everything into x
		x = math.Atan2(-m.At(1, 2), m.At(1, 1))
	}
	return mgl64.Vec3{mgl64.RadToDeg(x), mgl64.RadToDeg(y), mgl64.RadToDeg(z)}
}
