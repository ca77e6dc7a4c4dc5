package core

import "math"

// GlobeRadius is the radius of the rendered globe in scene units. All spike
// and arc dimensions are expressed relative to it.
const GlobeRadius = 100.0

// Vec3 is a point or direction in globe-centred scene space. The origin is
// the centre of the globe, +Y points to the north pole.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the cross product v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Normalize returns the unit vector in the direction of v. The zero vector
// is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// Lerp interpolates linearly between v (t=0) and other (t=1).
func (v Vec3) Lerp(other Vec3, t float64) Vec3 {
	return v.Add(other.Sub(v).Scale(t))
}

// Project converts a geographic position to a point on (or above) a sphere of
// the given radius centred at the origin.
//
// Longitude -180 lies on the -X axis and longitude 0 on +X, so the
// equirectangular texture seam (u = 0) sits at the antimeridian. The globe
// mesh is generated through this same function; changing the convention here
// keeps texture and attacks aligned.
//
// No validation is performed: NaN in gives NaN out, and out-of-range angles
// wrap around the sphere.
func Project(lat, lng, radius, elevation float64) Vec3 {
	phi := (90 - lat) * math.Pi / 180
	theta := (lng + 180) * math.Pi / 180
	r := radius + elevation

	sinPhi := math.Sin(phi)
	return Vec3{
		X: -r * sinPhi * math.Cos(theta),
		Y: r * math.Cos(phi),
		Z: r * sinPhi * math.Sin(theta),
	}
}

// TextureCoord returns the equirectangular texture coordinate matching
// Project for the same latitude and longitude. u grows eastward from the
// antimeridian; v grows southward from the north pole.
func TextureCoord(lat, lng float64) (u, v float64) {
	return (lng + 180) / 360, (90 - lat) / 180
}

// anyPerpendicular returns a unit vector perpendicular to v.
func anyPerpendicular(v Vec3) Vec3 {
	axis := Vec3{Y: 1}
	if math.Abs(v.Normalize().Dot(axis)) > 0.9 {
		axis = Vec3{X: 1}
	}
	return v.Cross(axis).Normalize()
}
