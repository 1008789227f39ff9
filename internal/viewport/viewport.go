// Package viewport derives which task is in view from layout measurements.
//
// Everything here is a pure function of its arguments so it can run at
// scroll-event frequency and be tested without a renderer.
package viewport

import "github.com/fentz26/taskstack/internal/stack"

// Span is a vertical extent [Top, Bottom) in a single coordinate space.
type Span struct {
	Top    float64
	Bottom float64
}

// Height returns the extent of s, never negative.
func (s Span) Height() float64 {
	if s.Bottom < s.Top {
		return 0
	}
	return s.Bottom - s.Top
}

// Scroll describes a scroll container: its offset, total content height and
// visible height.
type Scroll struct {
	Top    float64
	Height float64
	Client float64
}

// Container returns the visible window of the container in content coordinates.
func (s Scroll) Container() Span {
	return Span{Top: s.Top, Bottom: s.Top + s.Client}
}

// State is the derived view state consumed by the header.
type State struct {
	// CurrentIndex is a stack index; meaningful only when HasCurrent is true.
	CurrentIndex  int
	HasCurrent    bool
	HeaderVisible bool
}

// Visible returns how much of el lies inside container.
func Visible(el, container Span) float64 {
	top := max(el.Top, container.Top)
	bottom := min(el.Bottom, container.Bottom)
	if bottom <= top {
		return 0
	}
	return bottom - top
}

// MostVisible returns the display index of the element with the largest
// visible height. Ties go to the first element in display order, so a
// non-empty input always yields an index.
func MostVisible(elements []Span, container Span) (int, bool) {
	if len(elements) == 0 {
		return 0, false
	}
	best, bestArea := 0, Visible(elements[0], container)
	for i := 1; i < len(elements); i++ {
		if area := Visible(elements[i], container); area > bestArea {
			best, bestArea = i, area
		}
	}
	return best, true
}

// CurrentIndex is MostVisible translated from display order to a stack index.
// elements must be in display order.
func CurrentIndex(elements []Span, container Span) (int, bool) {
	d, ok := MostVisible(elements, container)
	if !ok {
		return 0, false
	}
	return stack.StackIndex(len(elements), d), true
}

// HeaderVisible reports whether the container is short of its maximum
// scroll offset, i.e. the newest task at the natural end is not in view.
func HeaderVisible(scrollTop, scrollHeight, clientHeight float64) bool {
	return scrollTop < scrollHeight-clientHeight
}

// Compute derives the full view state for one scroll signal.
func Compute(elements []Span, scroll Scroll) State {
	idx, ok := CurrentIndex(elements, scroll.Container())
	return State{
		CurrentIndex:  idx,
		HasCurrent:    ok,
		HeaderVisible: HeaderVisible(scroll.Top, scroll.Height, scroll.Client),
	}
}

// Layout lays out n equally sized elements of the given height separated by
// gap, in display order starting at offset 0.
func Layout(n int, height, gap float64) []Span {
	spans := make([]Span, n)
	for i := range spans {
		top := float64(i) * (height + gap)
		spans[i] = Span{Top: top, Bottom: top + height}
	}
	return spans
}
