package envelope

import (
	"math"
)

// Stream computes an envelope from samples arriving in chunks. The
// output is identical to Extract over the concatenation of all chunks.
type Stream struct {
	window int
	nFront int
	nBack  int

	ring      []float64
	received  int
	emitted   int
	sumSq     float64
	sinceSync int
}

func NewStream(window int) (*Stream, error) {
	if err := validateWindow(window); err != nil {
		return nil, err
	}
	nFront := (window - 1) / 2
	return &Stream{
		window: window,
		nFront: nFront,
		nBack:  window - 1 - nFront,
		ring:   make([]float64, window),
	}, nil
}

func (s *Stream) Window() int {
	return s.window
}

// Received returns the amount of samples pushed so far.
func (s *Stream) Received() int {
	return s.received
}

// Push consumes chunk and appends to dst the envelope values that
// became final, returning the extended slice.
func (s *Stream) Push(dst []float64, chunk []float64) []float64 {
	w := s.window
	for _, v := range chunk {
		j := s.received
		slot := j % w
		sq := v * v
		if j >= w {
			s.sumSq -= s.ring[slot] * s.ring[slot]
		}
		s.ring[slot] = v
		s.sumSq += sq
		s.received++

		if j >= w-1 {
			s.sinceSync++
			if s.sinceSync >= ResyncInterval {
				s.resync()
			}
		}

		if j-s.nBack < 0 {
			continue
		}
		// the value centered at j-nBack is final now
		if j >= w-1 {
			dst = append(dst, math.Sqrt(math.Max(s.sumSq, 0)/float64(w)))
		} else {
			dst = append(dst, 0)
		}
		s.emitted++
	}
	return dst
}

// Finish appends the trailing values that can never get a full window.
func (s *Stream) Finish(dst []float64) []float64 {
	for s.emitted < s.received {
		dst = append(dst, 0)
		s.emitted++
	}
	return dst
}

func (s *Stream) resync() {
	var sum float64
	for _, v := range s.ring {
		sum += v * v
	}
	s.sumSq = sum
	s.sinceSync = 0
}
