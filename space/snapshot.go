package space

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// NodeRecord is the persisted form of one node.
type NodeRecord struct {
	Shape    Shape
	Radius   float64
	Position Vector
	Color    Color
}

type nodeWire struct {
	Shape  uint8
	Radius float64
	Pos    [3]float64
	Color  [4]float64
}

// WriteNodes writes every committed node of s: a uint32 count followed by
// fixed-size little-endian records.
func WriteNodes(w io.Writer, s *Space) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(s.NodeCount())); err != nil {
		return fmt.Errorf("write node count: %w", err)
	}
	for n := range s.All() {
		rec := nodeWire{
			Shape:  uint8(n.shape),
			Radius: n.radius,
			Pos:    [3]float64{n.position.X, n.position.Y, n.position.Z},
			Color:  [4]float64{n.color.R, n.color.G, n.color.B, n.color.A},
		}
		if err := binary.Write(bw, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("write node: %w", err)
		}
	}
	return bw.Flush()
}

// ReadNodes reads records written by WriteNodes.
func ReadNodes(r io.Reader) ([]NodeRecord, error) {
	br := bufio.NewReader(r)
	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read node count: %w", err)
	}
	out := make([]NodeRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		var rec nodeWire
		if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("read node %d: %w", i, err)
		}
		if rec.Shape > uint8(Square2) {
			return nil, fmt.Errorf("read node %d: unknown shape %d", i, rec.Shape)
		}
		out = append(out, NodeRecord{
			Shape:    Shape(rec.Shape),
			Radius:   rec.Radius,
			Position: Vec3(rec.Pos[0], rec.Pos[1], rec.Pos[2]),
			Color:    Color{rec.Color[0], rec.Color[1], rec.Color[2], rec.Color[3]},
		})
	}
	return out, nil
}

// Restore creates one node per record. agent supplies the agent for record i
// and may be nil.
func (s *Space) Restore(recs []NodeRecord, agent func(i int) any) []*Node {
	nodes := make([]*Node, len(recs))
	for i, rec := range recs {
		var a any
		if agent != nil {
			a = agent(i)
		}
		n := s.CreateNode(rec.Shape, rec.Radius, rec.Position, a)
		n.color = rec.Color
		nodes[i] = n
	}
	return nodes
}
