package world

import (
	"testing"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestProbe(t *testing.T) {
	t.Parallel()

	probe := NewProbe([]World{{
		Name:  "overworld",
		Spawn: domain.Location{X: 0, Y: 64, Z: 0},
		Solid: []Box{{
			Min: domain.Location{X: 10, Y: 0, Z: 10},
			Max: domain.Location{X: 20, Y: 80, Z: 20},
		}},
	}})

	tests := []struct {
		name string
		loc  domain.Location
		safe bool
	}{
		{name: "open ground", loc: domain.Location{World: "overworld", X: 5, Y: 64, Z: 5}, safe: true},
		{name: "inside wall", loc: domain.Location{World: "overworld", X: 15, Y: 64, Z: 15}},
		{name: "on the boundary", loc: domain.Location{World: "overworld", X: 10, Y: 80, Z: 20}},
		{name: "unknown world", loc: domain.Location{World: "nether"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.safe, probe.IsSafe(tt.loc))
		})
	}

	spawn, ok := probe.Spawn("overworld")
	assert.True(t, ok)
	assert.Equal(t, domain.Location{World: "overworld", X: 0, Y: 64, Z: 0}, spawn)

	_, ok = probe.Spawn("nether")
	assert.False(t, ok)
}

func TestOpenProbe(t *testing.T) {
	t.Parallel()

	assert.True(t, Open{}.IsSafe(domain.Location{World: "anything"}))
	_, ok := Open{}.Spawn("anything")
	assert.False(t, ok)
}
