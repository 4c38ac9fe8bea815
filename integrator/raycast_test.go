package integrator

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/maskfusion/utils"
	"go.viam.com/maskfusion/voxel"
)

func collectRaycast(start, end r3.Vector, blockSize float64) []voxel.Index3D {
	var visited []voxel.Index3D
	raycastBlocks(start, end, blockSize, func(idx voxel.Index3D) { visited = append(visited, idx) })
	return visited
}

func TestRaycastBlocks(t *testing.T) {
	t.Run("along an axis", func(t *testing.T) {
		visited := collectRaycast(r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}, r3.Vector{X: 0.1, Y: 0.1, Z: 1.3}, 0.4)
		test.That(t, visited, test.ShouldResemble, []voxel.Index3D{{X: 0, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 1}, {X: 0, Y: 0, Z: 2}, {X: 0, Y: 0, Z: 3}})
	})

	t.Run("negative direction", func(t *testing.T) {
		visited := collectRaycast(r3.Vector{X: -0.1, Y: 0.1, Z: 0.1}, r3.Vector{X: -0.9, Y: 0.1, Z: 0.1}, 0.4)
		test.That(t, visited, test.ShouldResemble, []voxel.Index3D{{X: -1, Y: 0, Z: 0}, {X: -2, Y: 0, Z: 0}, {X: -3, Y: 0, Z: 0}})
	})

	t.Run("single block", func(t *testing.T) {
		p := r3.Vector{X: 0.3, Y: 0.3, Z: 0.3}
		test.That(t, collectRaycast(p, p, 0.4), test.ShouldResemble, []voxel.Index3D{{X: 0, Y: 0, Z: 0}})
	})

	t.Run("diagonal is face connected", func(t *testing.T) {
		visited := collectRaycast(r3.Vector{X: 0.1, Y: 0.15, Z: 0.05}, r3.Vector{X: 2.1, Y: 1.7, Z: 3.3}, 0.4)
		test.That(t, visited[0], test.ShouldResemble, voxel.Index3D{X: 0, Y: 0, Z: 0})
		test.That(t, visited[len(visited)-1], test.ShouldResemble, voxel.Index3D{X: 5, Y: 4, Z: 8})
		for i := 1; i < len(visited); i++ {
			a, b := visited[i-1], visited[i]
			test.That(t, utils.AbsInt(a.X-b.X)+utils.AbsInt(a.Y-b.Y)+utils.AbsInt(a.Z-b.Z), test.ShouldEqual, 1)
		}
		test.That(t, len(visited), test.ShouldEqual, 5+4+8+1)
	})
}

func TestSampledCoordinates(t *testing.T) {
	test.That(t, sampledCoordinates(10, 3), test.ShouldResemble, []int{0, 3, 6, 9})
	test.That(t, sampledCoordinates(10, 4), test.ShouldResemble, []int{0, 4, 8, 9})
	test.That(t, sampledCoordinates(3, 1), test.ShouldResemble, []int{0, 1, 2})
	test.That(t, sampledCoordinates(1, 0), test.ShouldResemble, []int{0})
	test.That(t, sampledCoordinates(0, 1), test.ShouldBeNil)
}
