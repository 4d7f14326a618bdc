package ui

import "strings"

// Sparkline renders recent throughput samples with Unicode block characters.
type Sparkline struct {
	samples []float64 // ring buffer
	head    int
	count   int
	max     float64
}

// SparklineChars are the eight bar heights, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline holding up to capacity samples.
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60
	}
	return &Sparkline{samples: make([]float64, capacity)}
}

// Add appends a sample, overwriting the oldest when full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	s.count++

	if value > s.max {
		s.max = value
	}
	// Rescale once per wrap so an old peak does not flatten the chart forever.
	if s.count%len(s.samples) == 0 {
		s.max = 0
		for _, v := range s.samples {
			s.max = max(s.max, v)
		}
	}
}

// Render returns the whole buffer, oldest sample first.
func (s *Sparkline) Render() string {
	return s.RenderWithWidth(len(s.samples))
}

// RenderWithWidth returns the newest width samples, right-padded with
// spaces while the buffer is still filling. A width <= 0 renders the
// whole buffer.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 || width > len(s.samples) {
		width = len(s.samples)
	}
	if s.count == 0 {
		return strings.Repeat(string(SparklineChars[0]), width)
	}

	recent := s.recent(width)

	var sb strings.Builder
	sb.Grow(width * 3)
	for _, v := range recent {
		sb.WriteRune(s.bar(v))
	}
	for range width - len(recent) {
		sb.WriteRune(' ')
	}
	return sb.String()
}

// recent returns up to n samples in insertion order.
func (s *Sparkline) recent(n int) []float64 {
	size := len(s.samples)
	filled := min(s.count, size)
	n = min(n, filled)

	out := make([]float64, 0, n)
	start := (s.head - n + size) % size
	for i := range n {
		out = append(out, s.samples[(start+i)%size])
	}
	return out
}

func (s *Sparkline) bar(v float64) rune {
	if s.max <= 0 {
		return SparklineChars[0]
	}
	idx := int(v / s.max * float64(len(SparklineChars)-1))
	idx = max(0, min(idx, len(SparklineChars)-1))
	return SparklineChars[idx]
}

// Clear resets the sparkline.
func (s *Sparkline) Clear() {
	clear(s.samples)
	s.head = 0
	s.count = 0
	s.max = 0
}

// Count returns the number of samples added since the last Clear.
func (s *Sparkline) Count() int {
	return s.count
}

// Max returns the current scale maximum.
func (s *Sparkline) Max() float64 {
	return s.max
}
