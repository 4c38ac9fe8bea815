// Package spatialmath defines rigid transforms between the coordinate frames used during fusion.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform made of a unit quaternion rotation followed by a translation.
// A Pose named T_A_B maps points expressed in frame B into frame A.
type Pose struct {
	rotation    quat.Number
	translation r3.Vector
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return Pose{rotation: quat.Number{Real: 1}}
}

// NewPose returns a pose from a translation and a rotation quaternion. The quaternion is normalized;
// a zero quaternion is treated as no rotation.
func NewPose(translation r3.Vector, rotation quat.Number) Pose {
	n := quat.Abs(rotation)
	if n == 0 {
		return Pose{rotation: quat.Number{Real: 1}, translation: translation}
	}
	return Pose{rotation: quat.Scale(1/n, rotation), translation: translation}
}

// NewPoseFromPoint returns a pure translation.
func NewPoseFromPoint(translation r3.Vector) Pose {
	return Pose{rotation: quat.Number{Real: 1}, translation: translation}
}

// NewPoseFromAxisAngle returns a pose rotating by the given axis angle and then translating.
func NewPoseFromAxisAngle(translation r3.Vector, aa *R4AA) Pose {
	return NewPose(translation, aa.ToQuat())
}

// NewPoseFromMatrix builds a pose from a 4x4 (or 3x4) homogeneous transform. The upper left 3x3 block
// must be a proper rotation.
func NewPoseFromMatrix(m mat.Matrix) (Pose, error) {
	r, c := m.Dims()
	if (r != 4 && r != 3) || c != 4 {
		return Pose{}, errors.Errorf("homogeneous transform must be 4x4 or 3x4, got %dx%d", r, c)
	}
	rot := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot.Set(i, j, m.At(i, j))
		}
	}
	if det := mat.Det(rot); math.Abs(det-1) > 1e-3 {
		return Pose{}, errors.Errorf("rotation block is not a proper rotation, determinant %v", det)
	}
	translation := r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
	return NewPose(translation, rotationMatrixToQuat(rot)), nil
}

// Point returns the translation component.
func (p Pose) Point() r3.Vector {
	return p.translation
}

// Orientation returns the rotation component as a unit quaternion.
func (p Pose) Orientation() quat.Number {
	return p.rotation
}

// TransformPoint maps a point from the source frame of the pose into its target frame.
func (p Pose) TransformPoint(pt r3.Vector) r3.Vector {
	return rotate(p.rotation, pt).Add(p.translation)
}

// Matrix returns the pose as a 4x4 homogeneous transform.
func (p Pose) Matrix() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	cols := []r3.Vector{
		rotate(p.rotation, r3.Vector{X: 1}),
		rotate(p.rotation, r3.Vector{Y: 1}),
		rotate(p.rotation, r3.Vector{Z: 1}),
	}
	for j, col := range cols {
		m.Set(0, j, col.X)
		m.Set(1, j, col.Y)
		m.Set(2, j, col.Z)
	}
	m.Set(0, 3, p.translation.X)
	m.Set(1, 3, p.translation.Y)
	m.Set(2, 3, p.translation.Z)
	m.Set(3, 3, 1)
	return m
}

// IsIdentity reports whether the pose is the identity within floating point tolerance.
func (p Pose) IsIdentity() bool {
	return PoseAlmostEqual(p, NewZeroPose(), 1e-12)
}

// Compose returns the pose a*b, which first applies b and then a. Composing T_A_B with T_B_C gives T_A_C.
func Compose(a, b Pose) Pose {
	return Pose{
		rotation:    quat.Mul(a.rotation, b.rotation),
		translation: a.TransformPoint(b.translation),
	}
}

// PoseInverse returns the inverse transform, so that Compose(p, PoseInverse(p)) is the identity.
func PoseInverse(p Pose) Pose {
	inv := quat.Conj(p.rotation)
	return Pose{
		rotation:    inv,
		translation: rotate(inv, p.translation).Mul(-1),
	}
}

// PoseAlmostEqual compares translations component-wise and orientations up to quaternion sign.
func PoseAlmostEqual(a, b Pose, epsilon float64) bool {
	if a.translation.Sub(b.translation).Norm() > epsilon {
		return false
	}
	return QuaternionAlmostEqual(a.rotation, b.rotation, epsilon)
}

// QuaternionAlmostEqual is an equality test for quaternions, treating q and -q as the same rotation.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	same := math.Abs(a.Real-b.Real) <= tol && math.Abs(a.Imag-b.Imag) <= tol &&
		math.Abs(a.Jmag-b.Jmag) <= tol && math.Abs(a.Kmag-b.Kmag) <= tol
	if same {
		return true
	}
	return math.Abs(a.Real+b.Real) <= tol && math.Abs(a.Imag+b.Imag) <= tol &&
		math.Abs(a.Jmag+b.Jmag) <= tol && math.Abs(a.Kmag+b.Kmag) <= tol
}

func rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// rotationMatrixToQuat converts a rotation matrix using the largest-diagonal branch for stability.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/matrixToQuaternion/
func rotationMatrixToQuat(r *mat.Dense) quat.Number {
	m00, m01, m02 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	m10, m11, m12 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	m20, m21, m22 := r.At(2, 0), r.At(2, 1), r.At(2, 2)
	tr := m00 + m11 + m22
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		return quat.Number{Real: 0.25 * s, Imag: (m21 - m12) / s, Jmag: (m02 - m20) / s, Kmag: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		return quat.Number{Real: (m21 - m12) / s, Imag: 0.25 * s, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		return quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: 0.25 * s, Kmag: (m12 + m21) / s}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		return quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: 0.25 * s}
	}
}
