package integrator

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/maskfusion/utils"
	"go.viam.com/maskfusion/voxel"
)

// raycastBlocks visits, in order, every block of side blockSize crossed by the segment from start
// to end (Amanatides & Woo grid traversal).
func raycastBlocks(start, end r3.Vector, blockSize float64, visit func(voxel.Index3D)) {
	s := start.Mul(1 / blockSize)
	e := end.Mul(1 / blockSize)
	dir := e.Sub(s)

	cur := [3]int{int(math.Floor(s.X)), int(math.Floor(s.Y)), int(math.Floor(s.Z))}
	last := [3]int{int(math.Floor(e.X)), int(math.Floor(e.Y)), int(math.Floor(e.Z))}
	origin := [3]float64{s.X, s.Y, s.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}

	var step [3]int
	var tMax, tDelta [3]float64
	steps := 0
	for axis := 0; axis < 3; axis++ {
		switch {
		case d[axis] > 0:
			step[axis] = 1
			tMax[axis] = (float64(cur[axis]+1) - origin[axis]) / d[axis]
			tDelta[axis] = 1 / d[axis]
		case d[axis] < 0:
			step[axis] = -1
			tMax[axis] = (origin[axis] - float64(cur[axis])) / -d[axis]
			tDelta[axis] = -1 / d[axis]
		default:
			tMax[axis] = math.Inf(1)
			tDelta[axis] = math.Inf(1)
		}
		steps += utils.AbsInt(last[axis] - cur[axis])
	}

	visit(voxel.Index3D{X: cur[0], Y: cur[1], Z: cur[2]})
	for i := 0; i < steps; i++ {
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		if tMax[axis] > 1 {
			return
		}
		cur[axis] += step[axis]
		tMax[axis] += tDelta[axis]
		visit(voxel.Index3D{X: cur[0], Y: cur[1], Z: cur[2]})
	}
}
