package viewport

import (
	"testing"

	"github.com/fentz26/taskstack/internal/models"
	"github.com/fentz26/taskstack/internal/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisible(t *testing.T) {
	container := Span{Top: 10, Bottom: 20}

	tests := []struct {
		name string
		el   Span
		want float64
	}{
		{"inside", Span{12, 18}, 6},
		{"covers", Span{0, 30}, 10},
		{"overlaps top", Span{5, 15}, 5},
		{"overlaps bottom", Span{15, 25}, 5},
		{"above", Span{0, 10}, 0},
		{"below", Span{20, 30}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Visible(tt.el, container))
		})
	}
}

func TestMostVisiblePicksLargestIntersection(t *testing.T) {
	elements := []Span{{0, 10}, {10, 20}, {20, 30}}

	idx, ok := MostVisible(elements, Span{Top: 13, Bottom: 23})
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestMostVisibleTieGoesToFirst(t *testing.T) {
	elements := []Span{{0, 10}, {10, 20}}

	idx, ok := MostVisible(elements, Span{Top: 5, Bottom: 15})
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = MostVisible(elements, Span{Top: 100, Bottom: 110})
	require.True(t, ok, "non-empty input always yields an index")
	assert.Equal(t, 0, idx)
}

func TestEmptyInputsDoNotFault(t *testing.T) {
	_, ok := MostVisible(nil, Span{0, 10})
	assert.False(t, ok)

	state := Compute(nil, Scroll{Top: 0, Height: 0, Client: 10})
	assert.False(t, state.HasCurrent)
	assert.False(t, state.HeaderVisible)

	_, ok = stack.New().Next(state.CurrentIndex)
	assert.False(t, ok)
}

func TestCurrentIndexTranslatesToStackOrder(t *testing.T) {
	elements := Layout(4, 10, 0)

	idx, ok := CurrentIndex(elements, Span{Top: 30, Bottom: 40})
	require.True(t, ok)
	assert.Equal(t, 0, idx, "bottom-most display element is the top of the stack")

	idx, ok = CurrentIndex(elements, Span{Top: 0, Bottom: 10})
	require.True(t, ok)
	assert.Equal(t, 3, idx)
}

func TestHeaderVisible(t *testing.T) {
	assert.True(t, HeaderVisible(0, 100, 40))
	assert.True(t, HeaderVisible(59, 100, 40))
	assert.False(t, HeaderVisible(60, 100, 40))
	assert.False(t, HeaderVisible(0, 30, 40), "content shorter than the container")
}

func TestSeedThenPushScenario(t *testing.T) {
	s := stack.New()
	s.Seed([]models.Task{{ID: "1", Name: "Write report", Timeframe: "this week"}})

	const cardHeight, gap, client = 10.0, 2.0, 10.0
	layout := Layout(s.Len(), cardHeight, gap)
	total := layout[len(layout)-1].Bottom

	state := Compute(layout, Scroll{Top: total - client, Height: total, Client: client})
	require.True(t, state.HasCurrent)
	assert.Equal(t, 0, state.CurrentIndex)
	assert.False(t, state.HeaderVisible, "a single task sits at the natural end")

	s.Push(models.Task{ID: "2", Name: "Call dentist", Timeframe: "today"})
	display := s.Display()
	assert.Equal(t, "1", display[0].ID)
	assert.Equal(t, "2", display[1].ID)

	layout = Layout(s.Len(), cardHeight, gap)
	total = layout[len(layout)-1].Bottom

	// Scrolled to the newest card.
	state = Compute(layout, Scroll{Top: total - client, Height: total, Client: client})
	assert.Equal(t, 0, state.CurrentIndex)
	assert.False(t, state.HeaderVisible)
	next, ok := s.Next(state.CurrentIndex)
	require.True(t, ok)
	assert.Equal(t, "1", next.ID)

	// Scrolled up to the oldest card.
	state = Compute(layout, Scroll{Top: 0, Height: total, Client: client})
	assert.Equal(t, 1, state.CurrentIndex)
	assert.True(t, state.HeaderVisible)
	_, ok = s.Next(state.CurrentIndex)
	assert.False(t, ok)
}
