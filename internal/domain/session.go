package domain

import (
	"math"
	"time"
)

// SessionID identifies one connected principal.
type SessionID string

type ActivityKind string

const (
	ActivityMove      ActivityKind = "move"
	ActivityChat      ActivityKind = "chat"
	ActivityCommand   ActivityKind = "command"
	ActivityInventory ActivityKind = "inventory"
	ActivityInteract  ActivityKind = "interact"
)

var activityKinds = map[ActivityKind]struct{}{
	ActivityMove:      {},
	ActivityChat:      {},
	ActivityCommand:   {},
	ActivityInventory: {},
	ActivityInteract:  {},
}

func (k ActivityKind) Valid() bool {
	_, ok := activityKinds[k]
	return ok
}

// Location is a point in a named world.
type Location struct {
	World string
	X     float64
	Y     float64
	Z     float64
}

func (l Location) IsZero() bool {
	return l == Location{}
}

// DistanceTo returns the euclidean distance between two locations, or +Inf
// when they are in different worlds.
func (l Location) DistanceTo(other Location) float64 {
	if l.World != other.World {
		return math.Inf(1)
	}
	return math.Sqrt(sq(l.X-other.X) + sq(l.Y-other.Y) + sq(l.Z-other.Z))
}

// Sample is one entry of a session's position history.
type Sample struct {
	X  float64
	Y  float64
	Z  float64
	At time.Time
}

func SampleAt(loc Location, at time.Time) Sample {
	return Sample{X: loc.X, Y: loc.Y, Z: loc.Z, At: at}
}

func (s Sample) DistanceTo(other Sample) float64 {
	return math.Sqrt(sq(s.X-other.X) + sq(s.Y-other.Y) + sq(s.Z-other.Z))
}

func sq(v float64) float64 {
	return v * v
}
