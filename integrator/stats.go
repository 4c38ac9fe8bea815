package integrator

import "go.uber.org/atomic"

// IntegrationStats summarizes a single integration call.
type IntegrationStats struct {
	// CandidateBlocks is the number of blocks visited.
	CandidateBlocks int
	// AllocatedBlocks is the number of blocks newly allocated by the call.
	AllocatedBlocks int
	// UpdatedVoxels is the number of voxels whose value and weight changed.
	UpdatedVoxels int
	// MaskedVoxels is the number of voxels skipped because their pixel was excluded.
	MaskedVoxels int
}

type statsCounter struct {
	allocated atomic.Int64
	updated   atomic.Int64
	masked    atomic.Int64
}

func (sc *statsCounter) stats(candidates int) IntegrationStats {
	return IntegrationStats{
		CandidateBlocks: candidates,
		AllocatedBlocks: int(sc.allocated.Load()),
		UpdatedVoxels:   int(sc.updated.Load()),
		MaskedVoxels:    int(sc.masked.Load()),
	}
}
