package shadow

import "github.com/Faultbox/midgard-lighting/pkg/math"

// MaxLOD is the number of occluder texture sizes, each half the previous.
const MaxLOD = 3

// LastSelfShadowLOD is the coarsest LOD that still draws the self-shadow
// pass.
const LastSelfShadowLOD = 1

// MinShadowSize is the smallest occluder texture edge.
const MinShadowSize = 4

// CompositeAdjust lifts the light color toward white before attenuating,
// so colored lights still leave a visible shadow.
const CompositeAdjust = 0.8

// SelectLOD picks the occluder LOD for a camera distance: the finer of a
// fixed step every four units and a step by fraction of maxVisible.
func SelectLOD(camDist, maxVisible float32) int {
	lod := clampLOD(int(camDist * 0.25))
	if maxVisible != 0 {
		lod = min(lod, clampLOD(int(camDist/maxVisible*float32(MaxLOD-1))))
	}
	return lod
}

func clampLOD(l int) int {
	return max(0, min(l, MaxLOD-1))
}

// DistanceAttenuation fades a shadow over the last third of maxVisible.
func DistanceAttenuation(camDist, maxVisible float32) float32 {
	if maxVisible == 0 {
		return 1
	}
	return math.Clamp((1-camDist/maxVisible)*3, 0, 1)
}

// SelfShadowAttenuation fades the self-shadow pass out by LastSelfShadowLOD.
func SelfShadowAttenuation(camDist float32) float32 {
	a := camDist * 0.25 / float32(LastSelfShadowLOD+1)
	return math.Clamp((1-a*a)*1.5, 0, 1)
}

// CompositeColor is the modulation color for a shadow of light color c at
// attenuation attn.
func CompositeColor(c math.Color, attn float32) [4]float32 {
	attn = math.Clamp(attn, 0, 1)
	ch := func(v float32) float32 {
		return math.Clamp((v+(1-v)*CompositeAdjust)*attn, 0, 1)
	}
	return [4]float32{ch(c.R), ch(c.G), ch(c.B), attn}
}

// LODSizes returns the texture edge per LOD starting from size.
func LODSizes(size int) [MaxLOD]int32 {
	var out [MaxLOD]int32
	for i := range out {
		out[i] = int32(size)
		size = max(size>>1, MinShadowSize)
	}
	return out
}
