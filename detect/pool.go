package detect

import (
	"fmt"
	"sync"
)

// Pool holds multiple instances of a Detector so frames from different
// goroutines can be processed in parallel.  A single Detector is not safe
// for concurrent use.
type Pool struct {
	detectors chan Detector
	size      int
	// mu guards closed so Return never sends on a closed channel
	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool of size detectors built by newDetector
func NewPool(size int, newDetector func() (Detector, error)) (*Pool, error) {

	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}

	p := &Pool{
		detectors: make(chan Detector, size),
		size:      size,
	}

	for i := 0; i < size; i++ {
		det, err := newDetector()

		if err != nil {
			// close any instances created before the error
			p.Close()
			return nil, fmt.Errorf("error creating detector %d: %w", i, err)
		}

		p.Return(det)
	}

	return p, nil
}

// Get takes a detector from the pool, blocking until one is available
func (p *Pool) Get() Detector {
	return <-p.detectors
}

// Return a detector to the pool.  Detectors returned after the pool is
// closed are closed.
func (p *Pool) Return(det Detector) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = det.Close()
		return
	}

	select {
	case p.detectors <- det:
	default:
		// pool is full
		_ = det.Close()
	}
}

// Size returns the number of detectors the pool was created with
func (p *Pool) Size() int {
	return p.size
}

// Close the pool and all detectors in it
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.detectors)

	for det := range p.detectors {
		_ = det.Close()
	}
}
