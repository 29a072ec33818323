package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{X: 1, Y: 2, Z: 3, W: 4}
	n := q.Normalize()

	length := float32(math.Sqrt(float64(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W)))
	if math.Abs(float64(length-1.0)) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}
}

func TestQuatToMat4(t *testing.T) {
	// Identity quaternion should produce identity matrix
	q := QuatIdentity()
	m := q.ToMat4()

	identity := Identity()
	for i := 0; i < 16; i++ {
		if math.Abs(float64(m[i]-identity[i])) > 0.0001 {
			t.Errorf("Identity quat should produce identity matrix, element %d: got %v, want %v", i, m[i], identity[i])
		}
	}
}
