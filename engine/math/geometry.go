package math

// FaceNormal returns the unit normal of the triangle (p0, p1, p2) with
// counter-clockwise winding.
func FaceNormal(p0, p1, p2 Vec3) Vec3 {
	edge1 := p1.Sub(p0)
	edge2 := p2.Sub(p0)
	return edge1.Cross(edge2).Normalized()
}

// ExtentsOf returns the axis-aligned bounds of the points. An empty slice
// yields zero extents.
func ExtentsOf(points []Vec3) Extents3D {
	if len(points) == 0 {
		return Extents3D{}
	}
	e := Extents3D{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		e.Min.X = min(e.Min.X, p.X)
		e.Min.Y = min(e.Min.Y, p.Y)
		e.Min.Z = min(e.Min.Z, p.Z)
		e.Max.X = max(e.Max.X, p.X)
		e.Max.Y = max(e.Max.Y, p.Y)
		e.Max.Z = max(e.Max.Z, p.Z)
	}
	return e
}

func (e Extents3D) Center() Vec3 {
	return e.Min.Add(e.Max).MulScalar(0.5)
}

// Radius is half the diagonal of the box.
func (e Extents3D) Radius() float32 {
	return e.Max.Sub(e.Min).Length() * 0.5
}
