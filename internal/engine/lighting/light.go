// Package lighting provides light sources, photometric falloff models and
// per-region light selection.
package lighting

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// Kind identifies the shape of a light source.
type Kind uint8

const (
	Point Kind = iota
	Spot
	Vector
	Ambient
	StaticPoint
	StaticSpot
)

var kindNames = [...]string{"point", "spot", "vector", "ambient", "static_point", "static_spot"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind converts a scene-file kind name.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown light kind %q", s)
}

// IsDirectional reports whether the light has no position (sun/ambient).
func (k Kind) IsDirectional() bool {
	return k == Vector || k == Ambient
}

// IsSpot reports whether the light is cone-restricted.
func (k Kind) IsSpot() bool {
	return k == Spot || k == StaticSpot
}

// IsStatic reports whether the light is baked into lightmaps.
func (k Kind) IsStatic() bool {
	return k == StaticPoint || k == StaticSpot
}

// NoZone marks an unused zone slot.
const NoZone int32 = -1

// DefaultSpotHalfAngle is the cone half-angle in degrees for new spots.
const DefaultSpotHalfAngle = 45

// Light is a registered light source. Lights are owned by the scene; the
// manager only holds references for the duration of a frame or bake.
type Light struct {
	ID   uuid.UUID
	Name string
	Kind Kind

	Position  math.Vec3
	Direction math.Vec3 // normalized at bind time
	Color     math.Color
	Ambient   math.Color
	Radius    float32

	// SpotHalfAngle is the cone half-angle in degrees.
	SpotHalfAngle float32

	CastsShadows       bool
	UseNormals         bool
	DoubleSidedAmbient bool
	SmoothSpot         bool
	LocalAmbient       float32 // fraction of color treated as ambient, 0..1

	// Model names the falloff model; empty selects the default.
	Model string

	DiffuseRestrictZone bool
	AmbientRestrictZone bool
	Zones               [2]int32

	// AssignedToObject marks a baked light installed on a specific object.
	AssignedToObject bool

	// Score is transient and recomputed per query.
	Score int32
}

// NewLight returns a light with the engine defaults.
func NewLight(kind Kind) *Light {
	return &Light{
		ID:            uuid.New(),
		Kind:          kind,
		Direction:     math.Vec3{X: 0, Y: 0, Z: -1},
		Radius:        1,
		SpotHalfAngle: DefaultSpotHalfAngle,
		CastsShadows:  true,
		UseNormals:    true,
		Zones:         [2]int32{NoZone, NoZone},
	}
}

// InZone reports whether the light belongs to zone.
func (l *Light) InZone(zone int32) bool {
	return zone == l.Zones[0] || zone == l.Zones[1]
}

// AllowDiffuse reports whether the light may diffusely light an object in zone.
func (l *Light) AllowDiffuse(zone int32) bool {
	return !l.DiffuseRestrictZone || l.InZone(zone)
}

// AllowAmbient reports whether the light may add ambient to an object in zone.
func (l *Light) AllowAmbient(zone int32) bool {
	return !l.AmbientRestrictZone || l.InZone(zone)
}

// SpotPlane returns the plane through the light facing along its direction.
// Points behind it can never be lit by the cone.
func (l *Light) SpotPlane() math.Plane {
	return math.PlaneFromNormal(l.Position, l.Direction.Normalize())
}

// CanBeSecondary reports whether the light can ride in the second slot of a
// dual light pair. Only unshadowed omni lights qualify.
func (l *Light) CanBeSecondary() bool {
	return (l.Kind == Point || l.Kind == StaticPoint) && !l.CastsShadows
}

func (l *Light) String() string {
	if l.Name != "" {
		return l.Name
	}
	return l.Kind.String() + ":" + l.ID.String()[:8]
}
