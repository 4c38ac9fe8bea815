package rimage

import (
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestColorConversions(t *testing.T) {
	c := NewColor(10, 200, 255)
	test.That(t, c.Hex(), test.ShouldEqual, "#0ac8ff")
	test.That(t, NewColorFromColor(c), test.ShouldResemble, c)
	test.That(t, NewColorFromColor(color.NRGBA{10, 200, 255, 255}), test.ShouldResemble, c)

	r, g, b, a := c.RGBA()
	test.That(t, r, test.ShouldEqual, uint32(0x0a0a))
	test.That(t, g, test.ShouldEqual, uint32(0xc8c8))
	test.That(t, b, test.ShouldEqual, uint32(0xffff))
	test.That(t, a, test.ShouldEqual, uint32(0xffff))
}

func TestWeightedBlend(t *testing.T) {
	black := NewColor(0, 0, 0)
	white := NewColor(255, 255, 255)

	// zero weight on the existing value keeps the sample exactly
	test.That(t, black.WeightedBlend(0, white, 1), test.ShouldResemble, white)
	test.That(t, black.WeightedBlend(1, white, 1), test.ShouldResemble, NewColor(128, 128, 128))
	test.That(t, black.WeightedBlend(3, white, 1), test.ShouldResemble, NewColor(64, 64, 64))
	test.That(t, black.WeightedBlend(0, white, 0), test.ShouldResemble, white)
}
