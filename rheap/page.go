package rheap

import (
	"github.com/edsrzf/mmap-go"
)

// cellsPerPage mirrors the "fixed count of equal-size object cells"
// language of spec.md §4.1; a page's cells are divided evenly across
// the flag region below.
const cellsPerPage = 512

// Page is a linked list node holding a fixed count of cells. Each
// cell's occupancy bit lives in an mmap-backed region (pageFlags) so
// that a page whose cells are entirely free can unmap that region and
// hand the bytes back to the OS independently of Go's own heap,
// matching spec.md's "pages that end sweep entirely free are returned
// to the OS". The cell *values* themselves are ordinary Go-GC-managed
// slice entries: rembed's tracing collector coordinates reachability
// and color, it does not replace Go's memory allocator.
type Page struct {
	cells    []GCObject
	occupied mmap.MMap // one byte per cell: 0 free, 1 occupied
	freeList []int
	old      bool // generational: the freelist was empty at the end of this page's last sweep
	next     *Page
}

func newPage() (*Page, error) {
	m, err := mmap.MapRegion(nil, cellsPerPage, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, WrapFatal(err, "rheap: mmap page")
	}
	p := &Page{
		cells:    make([]GCObject, cellsPerPage),
		occupied: m,
	}
	p.freeList = make([]int, cellsPerPage)
	for i := range p.freeList {
		p.freeList[i] = cellsPerPage - 1 - i
	}
	return p, nil
}

func (p *Page) hasFree() bool { return len(p.freeList) > 0 }

// take pops a free cell index, marking it occupied.
func (p *Page) take() int {
	n := len(p.freeList) - 1
	idx := p.freeList[n]
	p.freeList = p.freeList[:n]
	p.occupied[idx] = 1
	return idx
}

// release returns a cell to the free list; called by sweep for every
// still-white cell.
func (p *Page) release(idx int) {
	p.cells[idx] = nil
	p.occupied[idx] = 0
	p.freeList = append(p.freeList, idx)
}

func (p *Page) allOccupied() bool { return len(p.freeList) == 0 }
func (p *Page) allFree() bool     { return len(p.freeList) == cellsPerPage }

func (p *Page) unmap() error {
	return p.occupied.Unmap()
}
