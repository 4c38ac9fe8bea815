package utils

import (
	"testing"

	"go.viam.com/test"
)

func TestIntHelpers(t *testing.T) {
	test.That(t, AbsInt(-3), test.ShouldEqual, 3)
	test.That(t, AbsInt(4), test.ShouldEqual, 4)
	test.That(t, MaxInt(2, 5), test.ShouldEqual, 5)
	test.That(t, MinInt(2, 5), test.ShouldEqual, 2)
}

func TestFloatHelpers(t *testing.T) {
	test.That(t, MinFloat32(1.5, 0.5), test.ShouldEqual, float32(0.5))
	test.That(t, ClampFloat64(-1, 0, 255), test.ShouldEqual, 0.0)
	test.That(t, ClampFloat64(300, 0, 255), test.ShouldEqual, 255.0)
	test.That(t, ClampFloat64(12.5, 0, 255), test.ShouldEqual, 12.5)
}
