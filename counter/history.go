package counter

// historySize is the number of center y samples kept per track
const historySize = 2

// history is a fixed capacity ring of the most recent center y samples of
// a track, oldest first
type history struct {
	samples [historySize]int
	// n is the number of samples held, at most historySize
	n int
	// head is the index of the oldest sample
	head int
}

// push appends a sample, evicting the oldest once full
func (h *history) push(y int) {

	if h.n < historySize {
		h.samples[(h.head+h.n)%historySize] = y
		h.n++
		return
	}

	h.samples[h.head] = y
	h.head = (h.head + 1) % historySize
}

// full reports whether the history holds historySize samples
func (h *history) full() bool {
	return h.n == historySize
}

// oldest returns the oldest sample held
func (h *history) oldest() int {
	return h.samples[h.head]
}

// newest returns the most recent sample held
func (h *history) newest() int {
	return h.samples[(h.head+h.n-1)%historySize]
}
