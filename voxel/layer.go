package voxel

import (
	"cmp"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrInvalidVoxelSize is returned for non-positive voxel sizes.
var ErrInvalidVoxelSize = errors.New("voxel size must be positive")

// Voxels is the dense storage of one block, indexed [x][y][z].
type Voxels[V any] [VoxelsPerSide][VoxelsPerSide][VoxelsPerSide]V

// Block is a cube of voxels owned by a Layer. Concurrent writers must go through Update.
type Block[V any] struct {
	mu     sync.Mutex
	voxels Voxels[V]
}

// Voxel returns a copy of the voxel at idx.
func (b *Block[V]) Voxel(idx Index3D) V {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.voxels[idx.X][idx.Y][idx.Z]
}

// Voxels returns a copy of every voxel in the block.
func (b *Block[V]) Voxels() Voxels[V] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.voxels
}

// Update runs f with exclusive access to the block's voxels.
func (b *Block[V]) Update(f func(voxels *Voxels[V])) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f(&b.voxels)
}

// BlockReader reads the voxels of a block without giving access to Update.
type BlockReader[V any] interface {
	Voxel(idx Index3D) V
	Voxels() Voxels[V]
}

// LayerReader is the read-only view of a Layer handed to consumers of the map.
type LayerReader[V any] interface {
	VoxelSize() float64
	BlockSize() float64
	GetBlockAtIndex(Index3D) (BlockReader[V], bool)
	AllBlockIndices() []Index3D
	NumAllocatedBlocks() int
}

type layerView[V any] struct {
	layer *Layer[V]
}

type blockView[V any] struct {
	block *Block[V]
}

func (v layerView[V]) VoxelSize() float64 {
	return v.layer.VoxelSize()
}

func (v layerView[V]) BlockSize() float64 {
	return v.layer.BlockSize()
}

func (v layerView[V]) GetBlockAtIndex(idx Index3D) (BlockReader[V], bool) {
	b, ok := v.layer.GetBlockAtIndex(idx)
	if !ok {
		return nil, false
	}
	return blockView[V]{block: b}, true
}

func (v layerView[V]) AllBlockIndices() []Index3D {
	return v.layer.AllBlockIndices()
}

func (v layerView[V]) NumAllocatedBlocks() int {
	return v.layer.NumAllocatedBlocks()
}

func (v blockView[V]) Voxel(idx Index3D) V {
	return v.block.Voxel(idx)
}

func (v blockView[V]) Voxels() Voxels[V] {
	return v.block.Voxels()
}

// Layer is a sparse grid of voxel blocks of a single voxel kind.
type Layer[V any] struct {
	voxelSize float64

	mu     sync.RWMutex
	blocks map[Index3D]*Block[V]
}

// NewLayer returns an empty layer.
func NewLayer[V any](voxelSize float64) (*Layer[V], error) {
	if !(voxelSize > 0) {
		return nil, errors.Wrapf(ErrInvalidVoxelSize, "got %v", voxelSize)
	}
	return &Layer[V]{voxelSize: voxelSize, blocks: map[Index3D]*Block[V]{}}, nil
}

// VoxelSize returns the metric side length of a voxel.
func (l *Layer[V]) VoxelSize() float64 {
	return l.voxelSize
}

// BlockSize returns the metric side length of a block.
func (l *Layer[V]) BlockSize() float64 {
	return BlockSizeFromVoxelSize(l.voxelSize)
}

// GetOrAllocateBlock returns the block at idx, allocating a zeroed one if none exists. Concurrent
// callers racing on the same new index all receive the same block.
func (l *Layer[V]) GetOrAllocateBlock(idx Index3D) *Block[V] {
	l.mu.RLock()
	b, ok := l.blocks[idx]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.blocks[idx]; ok {
		return b
	}
	b = &Block[V]{}
	l.blocks[idx] = b
	return b
}

// GetBlockAtIndex returns the block at idx without allocating.
func (l *Layer[V]) GetBlockAtIndex(idx Index3D) (*Block[V], bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.blocks[idx]
	return b, ok
}

// AllBlockIndices returns the indices of every allocated block, sorted by X, then Y, then Z.
func (l *Layer[V]) AllBlockIndices() []Index3D {
	l.mu.RLock()
	indices := lo.Keys(l.blocks)
	l.mu.RUnlock()
	slices.SortFunc(indices, CompareIndex)
	return indices
}

// NumAllocatedBlocks returns the number of allocated blocks.
func (l *Layer[V]) NumAllocatedBlocks() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// ReadOnly returns a view of l that sees every later change to l but cannot modify it.
func (l *Layer[V]) ReadOnly() LayerReader[V] {
	return layerView[V]{layer: l}
}

// Clear drops every block.
func (l *Layer[V]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocks = map[Index3D]*Block[V]{}
}

// CallFunctionOnAllVoxels calls f on every voxel of every allocated block, in block index order.
// f receives copies and cannot modify the layer.
func CallFunctionOnAllVoxels[V any](l LayerReader[V], f func(blockIdx, voxelIdx Index3D, voxel V)) {
	for _, blockIdx := range l.AllBlockIndices() {
		block, ok := l.GetBlockAtIndex(blockIdx)
		if !ok {
			continue
		}
		voxels := block.Voxels()
		for x := 0; x < VoxelsPerSide; x++ {
			for y := 0; y < VoxelsPerSide; y++ {
				for z := 0; z < VoxelsPerSide; z++ {
					f(blockIdx, Index3D{x, y, z}, voxels[x][y][z])
				}
			}
		}
	}
}

// CompareIndex orders indices by X, then Y, then Z.
func CompareIndex(a, b Index3D) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.Z, b.Z)
}
