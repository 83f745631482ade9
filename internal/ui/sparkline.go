package ui

import (
	"strings"
)

// Sparkline renders recent samples as a row of Unicode block characters.
type Sparkline struct {
	samples []float64 // ring buffer
	width   int
	head    int
	count   int
	max     float64
	fixed   bool // max is a fixed ceiling, never recalculated
}

// SparklineChars are the eight bar heights, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline that scales to the largest sample.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60
	}
	return &Sparkline{
		samples: make([]float64, width),
		width:   width,
	}
}

// NewBoundedSparkline creates a sparkline with a fixed ceiling, for values
// with a known range such as MAP in [0, 1].
func NewBoundedSparkline(width int, ceiling float64) *Sparkline {
	s := NewSparkline(width)
	if ceiling > 0 {
		s.max = ceiling
		s.fixed = true
	}
	return s
}

// Add adds a new sample.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.width
	s.count++

	if s.fixed {
		return
	}
	if value > s.max {
		s.max = value
	}
	// Recalculate periodically so old peaks age out.
	if s.count%s.width == 0 {
		s.recalculateMax()
	}
}

func (s *Sparkline) recalculateMax() {
	s.max = 0
	for _, v := range s.samples {
		if v > s.max {
			s.max = v
		}
	}
	if s.max <= 0 {
		s.max = 1
	}
}

func (s *Sparkline) bar(value float64) rune {
	if s.max <= 0 {
		return SparklineChars[0]
	}
	idx := int(value / s.max * float64(len(SparklineChars)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(SparklineChars) {
		idx = len(SparklineChars) - 1
	}
	return SparklineChars[idx]
}

// Render returns the full-width sparkline, oldest sample first. Slots not yet
// filled are blank.
func (s *Sparkline) Render() string {
	return s.RenderWithWidth(s.width)
}

// RenderWithWidth renders the most recent width samples, padded with blanks.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 || width > s.width {
		width = s.width
	}
	if s.count == 0 {
		return strings.Repeat(" ", width)
	}
	if s.max <= 0 {
		s.recalculateMax()
	}

	n := min(s.count, s.width)
	if n > width {
		n = width
	}
	// The newest sample sits just before head.
	start := (s.head - n + s.width) % s.width

	var sb strings.Builder
	sb.Grow(width * 3)
	for i := 0; i < n; i++ {
		sb.WriteRune(s.bar(s.samples[(start+i)%s.width]))
	}
	for i := n; i < width; i++ {
		sb.WriteRune(' ')
	}
	return sb.String()
}

// Clear resets the sparkline.
func (s *Sparkline) Clear() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	s.head = 0
	s.count = 0
	if !s.fixed {
		s.max = 0
	}
}

// Count returns the number of samples added.
func (s *Sparkline) Count() int {
	return s.count
}

// Max returns the current scale ceiling.
func (s *Sparkline) Max() float64 {
	return s.max
}
