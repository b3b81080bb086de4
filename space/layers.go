package space

import (
	"fmt"
	"log/slog"
)

// DataLayer is a scalar field attached to a space and advanced once per tick.
type DataLayer interface {
	Name() string
	Space() *Space
	Value(p Vector) float64
	Total() float64
	// BeginStep and EndStep bracket agent processing in each tick.
	BeginStep()
	EndStep()
	// Process advances the layer after the commit pass.
	Process(tick int64)
}

// Sized is implemented by layers with a fixed cell resolution.
type Sized interface {
	Cells() [3]int
}

// AddDataLayer attaches l under its name. The layer must have been built for
// this space, names must be unique, and on a grid space the layer
// resolution must match the cell resolution.
func (s *Space) AddDataLayer(l DataLayer) error {
	if l.Space() != s {
		return fmt.Errorf("%w: data layer %q belongs to another space", ErrConfig, l.Name())
	}
	if _, ok := s.layers[l.Name()]; ok {
		return fmt.Errorf("%w: duplicate data layer %q", ErrConfig, l.Name())
	}
	if s.kind == Grid {
		sz, ok := l.(Sized)
		if !ok || sz.Cells() != s.grid.Cells() {
			return fmt.Errorf("%w: data layer %q does not match grid space %q cells %v", ErrConfig, l.Name(), s.name, s.grid.Cells())
		}
	}
	s.layers[l.Name()] = l
	s.layerOrder = append(s.layerOrder, l.Name())
	slog.Debug("data layer attached", "space", s.name, "layer", l.Name())
	return nil
}

// MustAddDataLayer is like AddDataLayer but panics on error.
func (s *Space) MustAddDataLayer(l DataLayer) {
	if err := s.AddDataLayer(l); err != nil {
		panic(err)
	}
}

// DataLayer returns the named layer, or nil if there is none.
func (s *Space) DataLayer(name string) DataLayer {
	return s.layers[name]
}

// DataLayers returns the attached layers in attachment order.
func (s *Space) DataLayers() []DataLayer {
	out := make([]DataLayer, 0, len(s.layerOrder))
	for _, name := range s.layerOrder {
		out = append(out, s.layers[name])
	}
	return out
}

// ValueAt samples the named layer at p. ok is false if no such layer exists.
func (s *Space) ValueAt(name string, p Vector) (v float64, ok bool) {
	l := s.layers[name]
	if l == nil {
		return 0, false
	}
	return l.Value(p), true
}

// DataLayersBeginStep calls BeginStep on every layer.
func (s *Space) DataLayersBeginStep() {
	for _, name := range s.layerOrder {
		s.layers[name].BeginStep()
	}
}

// DataLayersEndStep calls EndStep on every layer.
func (s *Space) DataLayersEndStep() {
	for _, name := range s.layerOrder {
		s.layers[name].EndStep()
	}
}

// ProcessAllDataLayers advances every layer for tick.
func (s *Space) ProcessAllDataLayers(tick int64) {
	for _, name := range s.layerOrder {
		s.layers[name].Process(tick)
	}
}
