package components

// Energy tracks what a walker has grazed and whether it is still alive.
type Energy struct {
	Grazed float64 // total taken from the food layer
	Alive  bool
}

// Organism holds identity and lineage.
type Organism struct {
	ID         uint32
	ParentID   uint32 // 0 for founders
	Generation uint32
	BirthTick  int64
}
