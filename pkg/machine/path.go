package machine

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Waypoint is one synchronized multi-axis target: axis name to target
// value (mm for linear axes, rps for rotary ones).
type Waypoint struct {
	Index   int
	Targets map[string]float64
}

// Path is an ordered sequence of waypoints, immutable once loaded.
type Path struct {
	Axes  []string // column order from the source file
	Steps []Waypoint
}

// Len returns the number of waypoints.
func (p *Path) Len() int { return len(p.Steps) }

// AxisNames returns every axis referenced anywhere in the path.
func (p *Path) AxisNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range p.Axes {
		if !seen[a] {
			seen[a] = true
			names = append(names, a)
		}
	}
	for _, wp := range p.Steps {
		for a := range wp.Targets {
			if !seen[a] {
				seen[a] = true
				names = append(names, a)
			}
		}
	}
	return names
}

// LoadPath reads a CSV path file: the header row names the axes, each
// following row is one waypoint of target values.
func LoadPath(filename string) (*Path, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open path file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return parsePath(records)
}

func parsePath(records [][]string) (*Path, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("path needs a header row and at least one waypoint")
	}

	header := records[0]
	axes := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("empty axis name in column %d", i+1)
		}
		axes[i] = name
	}

	steps := make([]Waypoint, 0, len(records)-1)
	for rowIdx, row := range records[1:] {
		if len(row) != len(axes) {
			return nil, fmt.Errorf("row %d has %d values, want %d", rowIdx+2, len(row), len(axes))
		}
		targets := make(map[string]float64, len(axes))
		for i, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d, axis %s: bad value %q", rowIdx+2, axes[i], cell)
			}
			targets[axes[i]] = v
		}
		steps = append(steps, Waypoint{Index: rowIdx, Targets: targets})
	}

	return &Path{Axes: axes, Steps: steps}, nil
}
