package shadow

import (
	"testing"

	"github.com/Faultbox/midgard-lighting/pkg/math"
)

func TestSelectLOD(t *testing.T) {
	tests := []struct {
		name       string
		camDist    float32
		maxVisible float32
		want       int
	}{
		{"close", 1, 50, 0},
		{"fixed step wins", 3, 4, 0},
		{"ratio wins", 30, 50, 1},
		{"far", 49, 50, 1},
		{"beyond", 200, 50, MaxLOD - 1},
		{"no max visible", 6, 0, 1},
		{"clamped fixed", 100, 0, MaxLOD - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectLOD(tt.camDist, tt.maxVisible); got != tt.want {
				t.Errorf("SelectLOD(%v, %v) = %d, want %d", tt.camDist, tt.maxVisible, got, tt.want)
			}
		})
	}
}

func TestLODSizes(t *testing.T) {
	if got := LODSizes(128); got != [MaxLOD]int32{128, 64, 32} {
		t.Errorf("LODSizes(128) = %v", got)
	}
	if got := LODSizes(6); got != [MaxLOD]int32{6, 4, 4} {
		t.Errorf("LODSizes(6) = %v", got)
	}
}

func TestDistanceAttenuation(t *testing.T) {
	if got := DistanceAttenuation(10, 50); got != 1 {
		t.Errorf("near attenuation = %v, want 1", got)
	}
	if got := DistanceAttenuation(50, 50); got != 0 {
		t.Errorf("edge attenuation = %v, want 0", got)
	}
	got := DistanceAttenuation(45, 50)
	if math.Abs(got-0.3) > 1e-5 {
		t.Errorf("fade attenuation = %v, want 0.3", got)
	}
}

func TestSelfShadowAttenuation(t *testing.T) {
	if got := SelfShadowAttenuation(0); got != 1 {
		t.Errorf("at camera = %v, want 1", got)
	}
	// a = 16*0.25/2 = 2, so (1-4)*1.5 clamps to zero.
	if got := SelfShadowAttenuation(16); got != 0 {
		t.Errorf("far = %v, want 0", got)
	}
}

func TestCompositeColor(t *testing.T) {
	tests := []struct {
		name  string
		color math.Color
		attn  float32
		want  [4]float32
	}{
		{"white full", math.Gray(1), 1, [4]float32{1, 1, 1, 1}},
		{"black half", math.Gray(0), 0.5, [4]float32{0.4, 0.4, 0.4, 0.5}},
		{"over attenuated", math.Gray(0.5), 2, [4]float32{0.9, 0.9, 0.9, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompositeColor(tt.color, tt.attn)
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-5 {
					t.Fatalf("CompositeColor = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
