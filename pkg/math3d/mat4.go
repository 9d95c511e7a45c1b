package math3d

import "math"

// Mat4 is an affine transform stored in column-major order, the layout glTF
// uses for node matrices.
type Mat4 [16]float64

// Basis returns the transform that maps world points into the frame with
// the given origin and orthonormal axes.
func Basis(origin, x, y, z Vec3) Mat4 {
	return Mat4{
		x.X, y.X, z.X, 0,
		x.Y, y.Y, z.Y, 0,
		x.Z, y.Z, z.Z, 0,
		-x.Dot(origin), -y.Dot(origin), -z.Dot(origin), 1,
	}
}

// PlaneFrame returns a transform whose X and Y axes span the plane through
// origin with the given normal, and whose Z axis is the normal. Points on
// the front side of the plane keep their counter-clockwise winding when
// projected with Project.
func PlaneFrame(origin, normal Vec3) Mat4 {
	z := normal.Normalize()
	up := V3(0, 1, 0)
	if math.Abs(z.Y) > 0.99 {
		up = V3(0, 0, -1)
	}
	x := up.Cross(z).Normalize()
	y := z.Cross(x)
	return Basis(origin, x, y, z)
}

// Apply transforms p as a point.
func (m Mat4) Apply(p Vec3) Vec3 {
	return Vec3{
		m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12],
		m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13],
		m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14],
	}
}

// Project transforms p and drops the depth component.
func (m Mat4) Project(p Vec3) Vec2 {
	v := m.Apply(p)
	return Vec2{v.X, v.Y}
}
