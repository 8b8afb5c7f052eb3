// Package rangealloc implements a block-structured GPU-buffer sub-allocator.
// It maintains a set of fixed-size blocks, each owning a single GPU buffer
// of the configured block size, and tracks a free list of byte ranges within
// each block. A GPU buffer is never resized or moved once created — draw
// calls hold byte offsets into it — so the allocator only ever grows by
// appending whole blocks.
package rangealloc

import "errors"

// ErrExceedsBlockSize is returned by AcquireRange when the requested size is
// larger than the allocator's configured block size. No number of additional
// blocks can satisfy such a request; block sizes are fixed at construction.
var ErrExceedsBlockSize = errors.New("rangealloc: requested size exceeds block size")

// Buffer is the opaque GPU buffer handle a block wraps. The allocator never
// creates or destroys these; CreateBlock is handed an externally constructed
// buffer, and the allocator never calls back into the GPU API.
type Buffer any

// Range identifies a sub-allocated byte span within one block's buffer.
type Range struct {
	// Block is the index of the owning block, valid only when Size > 0.
	Block int
	// Start is the byte offset of the range within the block's buffer.
	Start uint64
	// Size is the length of the range in bytes. A zero Size is the
	// sentinel "no block has capacity" result from AcquireRange.
	Size uint64
}

// Empty reports whether r is the zero-sized sentinel range.
func (r Range) Empty() bool {
	return r.Size == 0
}

type freeSpan struct {
	start, size uint64
}

type block struct {
	buffer Buffer
	free   []freeSpan // sorted by start, no two spans adjacent (always coalesced)
}

// Allocator sub-allocates byte ranges out of a set of fixed-size blocks.
type Allocator struct {
	blockSize uint64
	blocks    []block
}

// New creates an Allocator with the given block size in bytes. blockSize
// must be positive; a non-positive value panics, since every other
// operation on this type is undefined without one.
func New(blockSize uint64) *Allocator {
	if blockSize == 0 {
		panic("rangealloc: block size must be greater than zero")
	}
	return &Allocator{blockSize: blockSize}
}

// BlockSize returns the allocator's configured block size in bytes.
func (a *Allocator) BlockSize() uint64 {
	return a.blockSize
}

// BlockCount returns the number of blocks currently owned by the allocator.
func (a *Allocator) BlockCount() int {
	return len(a.blocks)
}

// BlockBuffer returns the GPU buffer backing the given block index.
func (a *Allocator) BlockBuffer(block int) Buffer {
	return a.blocks[block].buffer
}

// AcquireRange finds a free range of at least size bytes in the first block
// that can fit it. If no block has capacity, it returns the zero-sized
// sentinel Range — the caller must then construct a GPU buffer of
// BlockSize() bytes and call CreateBlock before retrying. A size exceeding
// the block size is a hard error the caller cannot work around by adding
// blocks.
func (a *Allocator) AcquireRange(size uint64) (Range, error) {
	if size > a.blockSize {
		return Range{}, ErrExceedsBlockSize
	}
	if size == 0 {
		return Range{}, nil
	}
	for bi := range a.blocks {
		b := &a.blocks[bi]
		for si, span := range b.free {
			if span.size < size {
				continue
			}
			start := span.start
			if span.size == size {
				b.free = append(b.free[:si], b.free[si+1:]...)
			} else {
				b.free[si] = freeSpan{start: start + size, size: span.size - size}
			}
			return Range{Block: bi, Start: start, Size: size}, nil
		}
	}
	return Range{}, nil
}

// CreateBlock appends a fresh block wrapping an externally constructed GPU
// buffer, initialized as one contiguous free span spanning the whole block.
// The caller is expected to retry AcquireRange afterward, and to upload
// block-sized zero-init data to buf so the backing GPU storage is sized to
// the whole block.
func (a *Allocator) CreateBlock(buf Buffer) {
	a.blocks = append(a.blocks, block{
		buffer: buf,
		free:   []freeSpan{{start: 0, size: a.blockSize}},
	})
}

// ReleaseRange merges r back into its block's free list, coalescing with
// adjacent free spans. empty reports whether the whole block became free as
// a result — the caller may use this to decide whether to retire the block.
func (a *Allocator) ReleaseRange(r Range) (empty bool) {
	if r.Empty() {
		return false
	}
	b := &a.blocks[r.Block]
	span := freeSpan{start: r.Start, size: r.Size}

	// Insert in sorted-by-start order, then coalesce with neighbors.
	i := 0
	for i < len(b.free) && b.free[i].start < span.start {
		i++
	}
	b.free = append(b.free, freeSpan{})
	copy(b.free[i+1:], b.free[i:])
	b.free[i] = span

	// Coalesce with the following span.
	if i+1 < len(b.free) && b.free[i].start+b.free[i].size == b.free[i+1].start {
		b.free[i].size += b.free[i+1].size
		b.free = append(b.free[:i+1], b.free[i+2:]...)
	}
	// Coalesce with the preceding span.
	if i > 0 && b.free[i-1].start+b.free[i-1].size == b.free[i].start {
		b.free[i-1].size += b.free[i].size
		b.free = append(b.free[:i], b.free[i+1:]...)
	}

	return len(b.free) == 1 && b.free[0].size == a.blockSize
}

// OutstandingBytes returns the total bytes currently sub-allocated (i.e. not
// free) across every block. Used by tests to verify ReleaseRange returns
// bytes to the pool.
func (a *Allocator) OutstandingBytes() uint64 {
	total := uint64(len(a.blocks)) * a.blockSize
	for _, b := range a.blocks {
		for _, s := range b.free {
			total -= s.size
		}
	}
	return total
}
