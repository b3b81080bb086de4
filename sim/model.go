// Package sim drives the spatial core: it owns the model's spaces, steps the
// walker agents and runs the per-tick commit protocol.
package sim

import (
	"fmt"

	"github.com/pthm-cable/spark/space"
)

// Model is a registry of named spaces. Names resolve at query time and a
// miss yields nil or an empty result rather than an error.
type Model struct {
	spaces map[string]*space.Space
	order  []*space.Space
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{spaces: make(map[string]*space.Space)}
}

// AddSpace registers s under its name.
func (m *Model) AddSpace(s *space.Space) error {
	if _, dup := m.spaces[s.Name()]; dup {
		return fmt.Errorf("%w: duplicate space %q", space.ErrConfig, s.Name())
	}
	m.spaces[s.Name()] = s
	m.order = append(m.order, s)
	return nil
}

// Space returns the named space, or nil.
func (m *Model) Space(name string) *space.Space { return m.spaces[name] }

// Spaces returns every space in registration order.
func (m *Model) Spaces() []*space.Space { return m.order }

// DataLayer returns the named layer of the named space, or nil.
func (m *Model) DataLayer(spaceName, layer string) space.DataLayer {
	s := m.spaces[spaceName]
	if s == nil {
		return nil
	}
	return s.DataLayer(layer)
}

// ValueAt samples a layer at p. ok is false when either name misses.
func (m *Model) ValueAt(spaceName, layer string, p space.Vector) (float64, bool) {
	s := m.spaces[spaceName]
	if s == nil {
		return 0, false
	}
	return s.ValueAt(layer, p)
}

// Agents returns the agents of the named space within radius of center.
func (m *Model) Agents(spaceName string, center space.Vector, radius float64) []any {
	s := m.spaces[spaceName]
	if s == nil {
		return nil
	}
	return s.Agents(center, radius)
}

// EndSetup ends the setup phase of every space.
func (m *Model) EndSetup() {
	for _, s := range m.order {
		s.EndSetup()
	}
}

// BeginStep runs DataLayersBeginStep on every space.
func (m *Model) BeginStep() {
	for _, s := range m.order {
		s.DataLayersBeginStep()
	}
}

// EndStep runs DataLayersEndStep on every space.
func (m *Model) EndStep() {
	for _, s := range m.order {
		s.DataLayersEndStep()
	}
}

// ProcessNodes commits every space and returns the summed counts.
func (m *Model) ProcessNodes() space.CommitStats {
	var total space.CommitStats
	for _, s := range m.order {
		st := s.ProcessNodes()
		total.Created += st.Created
		total.Moved += st.Moved
		total.Removed += st.Removed
	}
	return total
}

// ProcessDataLayers advances every data layer of every space.
func (m *Model) ProcessDataLayers(tick int64) {
	for _, s := range m.order {
		s.ProcessAllDataLayers(tick)
	}
}
