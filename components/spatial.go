package components

// Rotation holds a walker's heading in the XY plane.
type Rotation struct {
	Heading float64 // radians
}
