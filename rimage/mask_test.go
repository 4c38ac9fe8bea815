package rimage

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestMonoImage(t *testing.T) {
	m := NewMonoImage(5, 4)
	test.That(t, m.IsExcluded(1, 1), test.ShouldBeFalse)
	m.Set(1, 1, 3)
	test.That(t, m.IsExcluded(1, 1), test.ShouldBeTrue)
	test.That(t, m.IsExcluded(5, 1), test.ShouldBeFalse)

	m.Fill(0)
	test.That(t, m.Get(1, 1), test.ShouldEqual, uint8(0))

	m.Fill(1)
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			test.That(t, m.IsExcluded(x, y), test.ShouldBeTrue)
		}
	}
}

func TestConvertImageToMask(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(1, 0, color.Gray{Y: 255})
	m := ConvertImageToMask(img)
	test.That(t, m.IsExcluded(0, 0), test.ShouldBeFalse)
	test.That(t, m.IsExcluded(1, 0), test.ShouldBeTrue)
	test.That(t, m.Get(1, 0), test.ShouldEqual, uint8(255))
}

func TestConvertSixteenBitImageToMask(t *testing.T) {
	instances := image.NewGray16(image.Rect(0, 0, 4, 1))
	instances.SetGray16(1, 0, color.Gray16{Y: 1})
	instances.SetGray16(2, 0, color.Gray16{Y: 255})
	instances.SetGray16(3, 0, color.Gray16{Y: 300})
	m := ConvertImageToMask(instances)
	test.That(t, m.IsExcluded(0, 0), test.ShouldBeFalse)
	for x := 1; x < 4; x++ {
		test.That(t, m.IsExcluded(x, 0), test.ShouldBeTrue)
	}
	test.That(t, m.Get(3, 0), test.ShouldEqual, uint8(1))

	labels := image.NewRGBA64(image.Rect(0, 0, 2, 1))
	labels.SetRGBA64(1, 0, color.RGBA64{B: 1, A: 0xffff})
	m = ConvertImageToMask(labels)
	test.That(t, m.IsExcluded(0, 0), test.ShouldBeFalse)
	test.That(t, m.IsExcluded(1, 0), test.ShouldBeTrue)

	rgb := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	rgb.Set(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	test.That(t, ConvertImageToMask(rgb).Get(0, 0), test.ShouldEqual, uint8(255))
}

func TestImageAndDimensions(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(2, 1, color.NRGBA{1, 2, 3, 255})
	img := ConvertImage(src)
	test.That(t, img.GetXY(2, 1), test.ShouldResemble, NewColor(1, 2, 3))
	test.That(t, img.Bounds(), test.ShouldResemble, src.Bounds())
	test.That(t, img.At(9, 9), test.ShouldResemble, Color{})
}
