// Package world answers location safety and spawn questions for hosts that
// describe their worlds in configuration.
package world

import (
	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/ports"
)

// Box is an axis-aligned region, bounds included.
type Box struct {
	Min domain.Location
	Max domain.Location
}

func (b Box) Contains(loc domain.Location) bool {
	return loc.X >= b.Min.X && loc.X <= b.Max.X &&
		loc.Y >= b.Min.Y && loc.Y <= b.Max.Y &&
		loc.Z >= b.Min.Z && loc.Z <= b.Max.Z
}

type World struct {
	Name  string
	Spawn domain.Location
	// Solid regions are unsafe to stand in.
	Solid []Box
}

// Probe knows a fixed set of worlds. Locations in unknown worlds are unsafe.
type Probe struct {
	worlds map[string]World
}

var _ ports.WorldProbe = (*Probe)(nil)

func NewProbe(worlds []World) *Probe {
	p := &Probe{worlds: make(map[string]World, len(worlds))}
	for _, w := range worlds {
		if w.Spawn.World == "" {
			w.Spawn.World = w.Name
		}
		p.worlds[w.Name] = w
	}
	return p
}

func (p *Probe) IsSafe(loc domain.Location) bool {
	w, ok := p.worlds[loc.World]
	if !ok {
		return false
	}
	for _, box := range w.Solid {
		if box.Contains(loc) {
			return false
		}
	}
	return true
}

func (p *Probe) Spawn(world string) (domain.Location, bool) {
	w, ok := p.worlds[world]
	if !ok {
		return domain.Location{}, false
	}
	return w.Spawn, true
}

// Open is used when no worlds are configured: every location is safe and
// no spawn is known.
type Open struct{}

var _ ports.WorldProbe = Open{}

func (Open) IsSafe(domain.Location) bool { return true }

func (Open) Spawn(string) (domain.Location, bool) { return domain.Location{}, false }
