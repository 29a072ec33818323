package bake

import (
	"fmt"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/internal/scene"
	"github.com/Faultbox/midgard-lighting/pkg/formats"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// MaxLightmapDim bounds any single object lightmap.
const MaxLightmapDim = 4096

// Capabilities a receiver may add on top of scene.Receiver.
type (
	surfaceZoner interface {
		SurfaceZone(surface int32) int32
	}
	normalMapper interface {
		WantsNormalMaps() bool
	}
)

// Proxy tracks one receiver through a bake.
type Proxy struct {
	Object scene.Receiver
	CRC    uint32
	// Index is the object's position in persist order.
	Index int

	// Lights lists the lights finalized into Maps so far.
	Lights []*lighting.Light
	Maps   []*ColorMap
	// Normals is nil unless the object asked for direction maps.
	Normals []*NormalMap

	// Final holds the 8-bit lightmaps once the bake completed or the
	// cache was loaded.
	Final       []*formats.Lightmap
	FinalNormal []*formats.Lightmap

	working []*ColorMap
}

func newProxy(obj scene.Receiver, index int) (*Proxy, error) {
	sizes := obj.Lightmaps()
	if len(sizes) == 0 {
		return nil, fmt.Errorf("%s %q has no lightmaps", obj.Kind(), obj.Name())
	}
	p := &Proxy{Object: obj, CRC: obj.CRC(), Index: index}
	wantNormals := false
	if nm, ok := obj.(normalMapper); ok {
		wantNormals = nm.WantsNormalMaps()
	}
	for i, s := range sizes {
		if s.Width <= 0 || s.Height <= 0 || s.Width > MaxLightmapDim || s.Height > MaxLightmapDim {
			return nil, fmt.Errorf("%s %q lightmap %d is %dx%d", obj.Kind(), obj.Name(), i, s.Width, s.Height)
		}
		p.Maps = append(p.Maps, NewColorMap(s.Width, s.Height))
		if wantNormals {
			p.Normals = append(p.Normals, NewNormalMap(s.Width, s.Height))
		}
	}
	return p, nil
}

// Name is the receiver's name.
func (p *Proxy) Name() string { return p.Object.Name() }

func (p *Proxy) beginLight() {
	p.working = make([]*ColorMap, len(p.Maps))
	for i, m := range p.Maps {
		p.working[i] = NewColorMap(m.Width, m.Height)
	}
}

func (p *Proxy) lit() bool { return p.working != nil }

// finalizeLight merges the working buffers of the current light.
func (p *Proxy) finalizeLight(l *lighting.Light, fillScale int, blur bool) {
	if p.working == nil {
		return
	}
	for i, w := range p.working {
		w.FillIn(fillScale)
		if blur {
			w.Blur()
		}
		w.AddTo(p.Maps[i])
	}
	p.working = nil
	p.Lights = append(p.Lights, l)
}

// zones decides whether l may light a texel on surface diffusely and
// ambiently.
func (p *Proxy) zones(l *lighting.Light, surface int32) (diffuse, ambient bool) {
	if !l.DiffuseRestrictZone && !l.AmbientRestrictZone {
		return true, true
	}
	in := false
	if p.Object.Kind() == scene.KindInterior {
		for _, z := range p.Object.CurrentZones() {
			if z > 0 && l.InZone(z) {
				in = true
				break
			}
		}
		if sz, ok := p.Object.(surfaceZoner); ok && !in {
			in = l.InZone(sz.SurfaceZone(surface))
		}
	} else {
		in = l.InZone(scene.OutdoorZone)
	}
	return !l.DiffuseRestrictZone || in, !l.AmbientRestrictZone || in
}

// bakeFinal converts the accumulated maps to 8-bit lightmaps. Interiors
// include their base color; terrain and atlas maps hold light only.
func (p *Proxy) bakeFinal() {
	base := math.Color{}
	if p.Object.Kind() == scene.KindInterior {
		base = p.Object.BaseColor()
	}
	p.Final = make([]*formats.Lightmap, len(p.Maps))
	for i, m := range p.Maps {
		p.Final[i] = m.Lightmap(base)
	}
	p.FinalNormal = nil
	if p.Normals != nil {
		p.FinalNormal = make([]*formats.Lightmap, len(p.Normals))
		for i, n := range p.Normals {
			p.FinalNormal[i] = n.Lightmap(math.Vec3{X: 0, Y: 0, Z: 1})
		}
	}
}
