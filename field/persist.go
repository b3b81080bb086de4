package field

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pthm-cable/spark/space"
)

// The on-disk layout is three little-endian int32 cell counts followed by the
// cells as little-endian float64 in storage order. There is no version field.
// Readers consume exactly one layer, so several layers can share a stream.

func writeLayer(w io.Writer, cells [3]int, data []float64) (int64, error) {
	bw := bufio.NewWriter(w)
	dims := [3]int32{int32(cells[0]), int32(cells[1]), int32(cells[2])}
	if err := binary.Write(bw, binary.LittleEndian, dims); err != nil {
		return 0, fmt.Errorf("write dims: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, data); err != nil {
		return 0, fmt.Errorf("write cells: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return int64(12 + 8*len(data)), nil
}

func readDims(r io.Reader) ([3]int, error) {
	var dims [3]int32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return [3]int{}, fmt.Errorf("read dims: %w", err)
	}
	for _, d := range dims {
		if d < 1 {
			return [3]int{}, fmt.Errorf("read dims: invalid size %v", dims)
		}
	}
	return [3]int{int(dims[0]), int(dims[1]), int(dims[2])}, nil
}

func readLayer(r io.Reader, want [3]int) ([]float64, error) {
	got, err := readDims(r)
	if err != nil {
		return nil, err
	}
	if got != want {
		return nil, fmt.Errorf("read cells: stored size %v does not match layer size %v", got, want)
	}
	data := make([]float64, got[0]*got[1]*got[2])
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("read cells: %w", err)
	}
	return data, nil
}

// WriteTo writes the grid's cell counts and values.
func (g *Grid) WriteTo(w io.Writer) (int64, error) {
	return writeLayer(w, g.n, g.data)
}

// ReadFrom replaces the grid's values with a stored layer of the same size.
func (g *Grid) ReadFrom(r io.Reader) (int64, error) {
	data, err := readLayer(r, g.n)
	if err != nil {
		return 0, err
	}
	copy(g.data, data)
	return int64(12 + 8*len(data)), nil
}

// WriteTo writes the published array.
func (g *ParallelGrid) WriteTo(w io.Writer) (int64, error) {
	return writeLayer(w, g.n, g.Snapshot())
}

// ReadFrom publishes a stored layer of the same size.
func (g *ParallelGrid) ReadFrom(r io.Reader) (int64, error) {
	data, err := readLayer(r, g.n)
	if err != nil {
		return 0, err
	}
	g.publish(data)
	return int64(12 + 8*len(data)), nil
}

// ReadGrid creates a Grid on s sized from a stored layer.
func ReadGrid(r io.Reader, name string, s *space.Space) (*Grid, error) {
	dims, err := readDims(r)
	if err != nil {
		return nil, err
	}
	g, err := NewGrid3(name, s, dims[0], dims[1], dims[2])
	if err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, g.data); err != nil {
		return nil, fmt.Errorf("read cells: %w", err)
	}
	return g, nil
}
