package ppg

// SignalBuffer is a fixed-capacity FIFO of samples in arrival order.
// Appending beyond capacity evicts the oldest sample.
// Not safe for concurrent use — the buffer is exclusively owned by the
// single frame-processing path.
type SignalBuffer struct {
	buf      []Sample
	capacity int
	head     int // next write position
	count    int
}

// NewSignalBuffer creates a buffer holding at most capacity samples.
func NewSignalBuffer(capacity int) *SignalBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &SignalBuffer{
		buf:      make([]Sample, capacity),
		capacity: capacity,
	}
}

// Append adds a sample, evicting the oldest if the buffer is full.
func (b *SignalBuffer) Append(s Sample) {
	// head always points at the slot to overwrite; when full that slot
	// holds the oldest sample.
	b.buf[b.head] = s
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// Len returns the number of buffered samples (never exceeds capacity).
func (b *SignalBuffer) Len() int {
	return b.count
}

// Window returns the most recent n samples in arrival order, or all of
// them if fewer are buffered. The result is a copy; mutating it never
// affects the buffer. An empty buffer yields an empty window.
func (b *SignalBuffer) Window(n int) []Sample {
	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return nil
	}
	result := make([]Sample, n)
	// Oldest requested item is at (head - n) mod capacity.
	start := (b.head - n + b.capacity) % b.capacity
	for i := 0; i < n; i++ {
		result[i] = b.buf[(start+i)%b.capacity]
	}
	return result
}

// Values returns the values of the most recent n samples in arrival order.
func (b *SignalBuffer) Values(n int) []float64 {
	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return nil
	}
	result := make([]float64, n)
	start := (b.head - n + b.capacity) % b.capacity
	for i := 0; i < n; i++ {
		result[i] = b.buf[(start+i)%b.capacity].Value
	}
	return result
}

// Reset discards all buffered samples.
func (b *SignalBuffer) Reset() {
	b.head = 0
	b.count = 0
}
