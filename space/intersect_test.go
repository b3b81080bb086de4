package space

import "testing"

func TestShapesIntersect(t *testing.T) {
	tests := []struct {
		name   string
		sa, sb Shape
		ra, rb float64
		d      Vector
		want   bool
	}{
		{"circles overlap", Circle, Circle, 1, 1, Vec2(1.9, 0), true},
		{"circles touching do not count", Circle, Circle, 1, 1, Vec2(2, 0), false},
		{"boxes touching count", Square2, Square2, 1, 1, Vec2(2, 0), true},
		{"boxes apart", Square2, Square2, 1, 1, Vec2(2.1, 0), false},
		{"boxes diagonal", Square2, Square2, 1, 1, Vec2(1.9, 1.9), true},
		{"box corner reaches disc", Square2, Circle, 1, 1, Vec2(1.5, 1.5), true},
		{"box corner misses disc", Square2, Circle, 1, 1, Vec2(1.8, 1.8), false},
		{"disc beside box edge", Square2, Circle, 1, 1, Vec2(1.9, 0), true},
		{"disc past box edge", Square2, Circle, 1, 1, Vec2(2.1, 0), false},
		{"legacy square collides as disc", Square, Circle, 1, 1, Vec2(1.5, 1.5), false},
		{"legacy squares collide as discs", Square, Square, 1, 1, Vec2(1.2, 1.2), true},
		{"box against legacy square", Square2, Square, 1, 1, Vec2(1.5, 1.5), true},
		{"zero radius point inside box", Square2, Circle, 1, 0, Vec2(0.5, -0.5), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShapesIntersect(tt.sa, tt.ra, tt.sb, tt.rb, tt.d, 2); got != tt.want {
				t.Errorf("ShapesIntersect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntersectionSymmetry(t *testing.T) {
	for _, wrap := range []bool{false, true} {
		s := newTestSpace(t, wrap, Serial)
		shapes := []Shape{Circle, Square, Square2}
		radii := []float64{0, 0.3, 1, 2.5}
		var positions []Vector
		for x := 0.0; x <= 10; x += 1.7 {
			for y := 0.0; y <= 10; y += 2.3 {
				positions = append(positions, Vec2(x, y))
			}
		}

		for _, sa := range shapes {
			for _, sb := range shapes {
				for _, ra := range radii {
					for _, rb := range radii {
						for _, pa := range positions {
							for _, pb := range positions {
								a := newNode(s, sa, ra, s.Restrict(pa), nil)
								b := newNode(s, sb, rb, s.Restrict(pb), nil)
								if Intersects(a, b) != Intersects(b, a) {
									t.Fatalf("asymmetric: %v vs %v (wrap=%v)", a, b, wrap)
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestIntersectsAcrossWrap(t *testing.T) {
	s := newTestSpace(t, true, Serial)
	a := s.CreateNode(Circle, 0.5, Vec2(9.5, 5), nil)
	b := s.CreateNode(Circle, 0.5, Vec2(0.4, 5), nil)
	if !a.Intersects(b) {
		t.Error("expected discs to touch across the wrap seam")
	}

	c := s.CreateNode(Square2, 0.5, Vec2(5, 9.8), nil)
	d := s.CreateNode(Square2, 0.5, Vec2(5, 0.7), nil)
	if !c.Intersects(d) {
		t.Error("expected boxes to overlap across the wrap seam")
	}
}

func TestIntersects3D(t *testing.T) {
	tests := []struct {
		name   string
		sa, sb Shape
		d      Vector
		want   bool
	}{
		{"spheres", Circle, Circle, Vec3(1, 1, 1), true},
		{"spheres apart", Circle, Circle, Vec3(1.2, 1.2, 1.2), false},
		{"cube face", Square2, Circle, Vec3(1.5, 0, 0), true},
		{"cube corner", Square2, Circle, Vec3(1.5, 1.5, 1.5), true},
		{"cube corner miss", Square2, Circle, Vec3(1.7, 1.7, 1.7), false},
		{"cubes", Square2, Square2, Vec3(2, 2, 2), true},
		{"cubes apart in z", Square2, Square2, Vec3(0, 0, 2.01), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShapesIntersect(tt.sa, 1, tt.sb, 1, tt.d, 3); got != tt.want {
				t.Errorf("ShapesIntersect = %v, want %v", got, tt.want)
			}
		})
	}
}
