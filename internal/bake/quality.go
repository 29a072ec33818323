package bake

import "fmt"

// Quality trades lightmap resolution for bake speed. Sub-sampled bakes
// light every FillScale-th texel in both axes and copy the rest from the
// nearest lit texel above and to the left.
type Quality uint8

const (
	QualityFull Quality = iota
	QualityDesign
	QualityDraft
)

var qualityNames = [...]string{"full", "design", "draft"}

func (q Quality) String() string {
	if int(q) < len(qualityNames) {
		return qualityNames[q]
	}
	return fmt.Sprintf("Quality(%d)", q)
}

// ParseQuality converts a config name.
func ParseQuality(s string) (Quality, error) {
	for i, n := range qualityNames {
		if n == s {
			return Quality(i), nil
		}
	}
	return QualityFull, fmt.Errorf("unknown bake quality %q", s)
}

// FillScale is the texel step the quality lights at. Always a power of two.
func (q Quality) FillScale() int {
	switch q {
	case QualityDesign:
		return 2
	case QualityDraft:
		return 4
	}
	return 1
}

// CacheSuffix tags cache files of sub-sampled bakes so they never satisfy
// a full-quality load.
func (q Quality) CacheSuffix() string {
	if q == QualityFull {
		return ""
	}
	return "-raw"
}
