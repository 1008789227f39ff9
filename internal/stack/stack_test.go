package stack

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/fentz26/taskstack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(id string) models.Task {
	return models.Task{ID: id, Name: "task " + id, Timeframe: "today"}
}

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestSeedReplacesEverything(t *testing.T) {
	s := New()
	s.Push(task("old"))

	given := []models.Task{task("a"), task("b"), task("c")}
	s.Seed(given)

	assert.Equal(t, given, s.Tasks())
}

func TestSeedKeepsFirstOfDuplicateIDs(t *testing.T) {
	s := New()
	first := task("a")
	second := task("a")
	second.Name = "shadow"

	s.Seed([]models.Task{first, task("b"), second})

	assert.Equal(t, []string{"a", "b"}, ids(s.Tasks()))
	got, ok := s.At(0)
	require.True(t, ok)
	assert.Equal(t, first.Name, got.Name)
}

func TestPushInsertsAtTop(t *testing.T) {
	s := New()
	s.Seed([]models.Task{task("1")})

	s.Push(task("2"))

	assert.Equal(t, []string{"2", "1"}, ids(s.Tasks()))
	assert.Equal(t, []string{"1", "2"}, ids(s.Display()))
}

func TestPushExistingIDReplacesWithoutDuplicate(t *testing.T) {
	s := New()
	s.Seed([]models.Task{task("a"), task("b"), task("c")})

	renamed := task("c")
	renamed.Name = "renamed"
	s.Push(renamed)

	assert.Equal(t, []string{"c", "a", "b"}, ids(s.Tasks()))
	got, _ := s.At(0)
	assert.Equal(t, "renamed", got.Name)
}

func TestPopByIDThenPopAgainIsNoop(t *testing.T) {
	s := New()
	s.Seed([]models.Task{task("A"), task("B"), task("C")})

	change, err := s.Apply(models.UpdatePayload{Action: models.ActionPop, TaskID: "B"})
	require.NoError(t, err)
	assert.Equal(t, Popped, change.Kind)
	assert.Equal(t, []string{"A", "C"}, ids(s.Tasks()))

	change, err = s.Apply(models.UpdatePayload{Action: models.ActionPop, TaskID: "B"})
	require.NoError(t, err)
	assert.Equal(t, Unchanged, change.Kind)
	assert.Equal(t, []string{"A", "C"}, ids(s.Tasks()))
}

func TestUpdateReplacesInPlace(t *testing.T) {
	s := New()
	s.Seed([]models.Task{task("a"), task("b"), task("c")})

	updated := task("b")
	updated.Completed = true
	change, err := s.Apply(models.UpdatePayload{Action: models.ActionUpdate, Task: &updated})
	require.NoError(t, err)
	assert.Equal(t, Updated, change.Kind)

	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Tasks()))
	got, _ := s.At(1)
	assert.True(t, got.Completed)
}

func TestUpdateMissIsNoop(t *testing.T) {
	s := New()
	s.Seed([]models.Task{task("a")})

	ghost := task("ghost")
	change, err := s.Apply(models.UpdatePayload{Action: models.ActionUpdate, Task: &ghost})
	require.NoError(t, err)
	assert.Equal(t, Unchanged, change.Kind)
	assert.Equal(t, []string{"a"}, ids(s.Tasks()))
}

func TestApplyRejectsBadPayloads(t *testing.T) {
	s := New()
	s.Seed([]models.Task{task("a")})

	_, err := s.Apply(models.UpdatePayload{Action: "shuffle"})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = s.Apply(models.UpdatePayload{Action: models.ActionPush})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = s.Apply(models.UpdatePayload{Action: models.ActionUpdate})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	assert.Equal(t, []string{"a"}, ids(s.Tasks()))
}

func TestSetCompletedTouchesOnlyThatTask(t *testing.T) {
	s := New()
	before := []models.Task{task("3"), task("2"), task("1")}
	s.Seed(before)

	require.True(t, s.SetCompleted("1", true))

	after := s.Tasks()
	require.Len(t, after, 3)
	for i := range before {
		if after[i].ID == "1" {
			assert.True(t, after[i].Completed)
			continue
		}
		assert.Equal(t, before[i], after[i])
	}
	assert.False(t, s.SetCompleted("missing", true))
}

func TestIndexTranslationIsInvolution(t *testing.T) {
	for n := 1; n <= 16; n++ {
		for i := 0; i < n; i++ {
			d := DisplayIndex(n, i)
			assert.GreaterOrEqual(t, d, 0)
			assert.Less(t, d, n)
			assert.Equal(t, i, StackIndex(n, d), "n=%d i=%d", n, i)
			assert.Equal(t, i, DisplayIndex(n, DisplayIndex(n, i)))
		}
	}
}

func TestNext(t *testing.T) {
	s := New()
	_, ok := s.Next(0)
	assert.False(t, ok, "empty stack has no next task")
	_, ok = s.Next(-1)
	assert.False(t, ok)

	s.Seed([]models.Task{task("2"), task("1")})
	next, ok := s.Next(0)
	require.True(t, ok)
	assert.Equal(t, "1", next.ID)

	_, ok = s.Next(1)
	assert.False(t, ok, "oldest task has no next")
}

// reference is the plain-slice model the stack must agree with.
type reference []string

func (r reference) push(id string) reference {
	out := reference{id}
	for _, x := range r {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func (r reference) pop(id string) reference {
	out := reference{}
	for _, x := range r {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func TestRandomSequencesMatchReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		s := New()
		var ref reference

		seedLen := rng.Intn(5)
		seed := make([]models.Task, 0, seedLen)
		for i := 0; i < seedLen; i++ {
			id := fmt.Sprintf("s%d", i)
			seed = append(seed, task(id))
			ref = append(ref, id)
		}
		s.Seed(seed)

		for step := 0; step < 40; step++ {
			id := fmt.Sprintf("t%d", rng.Intn(8))
			switch rng.Intn(3) {
			case 0:
				tk := task(id)
				_, err := s.Apply(models.UpdatePayload{Action: models.ActionPush, Task: &tk})
				require.NoError(t, err)
				ref = ref.push(id)
			case 1:
				_, err := s.Apply(models.UpdatePayload{Action: models.ActionPop, TaskID: id})
				require.NoError(t, err)
				ref = ref.pop(id)
			case 2:
				tk := task(id)
				tk.Completed = true
				_, err := s.Apply(models.UpdatePayload{Action: models.ActionUpdate, Task: &tk})
				require.NoError(t, err)
			}

			got := ids(s.Tasks())
			if len(ref) == 0 {
				require.Empty(t, got, "round %d step %d", round, step)
				continue
			}
			require.Equal(t, []string(ref), got, "round %d step %d", round, step)
		}
	}
}
