package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskCompletesOnDeadline(t *testing.T) {
	s := NewScheduler()
	var results []bool
	task := s.After(100*time.Millisecond, func(completed bool) { results = append(results, completed) })

	assert.Equal(t, 0, s.Advance(50*time.Millisecond))
	assert.Empty(t, results)
	assert.InDelta(t, 0.5, task.Progress(), 0.0001)
	assert.Equal(t, 50*time.Millisecond, task.Remaining())

	assert.Equal(t, 1, s.Advance(50*time.Millisecond))
	assert.Equal(t, []bool{true}, results)
	assert.True(t, task.Done())
	assert.False(t, task.Cancelled())

	// После завершения отмена ничего не делает
	assert.False(t, task.Cancel())
	assert.Equal(t, []bool{true}, results)
}

func TestZeroDurationNeverFiresInsideAfter(t *testing.T) {
	s := NewScheduler()
	fired := false
	s.After(0, func(bool) { fired = true })
	assert.False(t, fired)
	assert.Equal(t, 1, s.Pending())

	s.Advance(0)
	assert.True(t, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestCancelFiresOnceWithFalse(t *testing.T) {
	s := NewScheduler()
	var results []bool
	task := s.After(time.Second, func(completed bool) { results = append(results, completed) })

	s.Advance(600 * time.Millisecond)
	require.True(t, task.Cancel())
	assert.Equal(t, []bool{false}, results)
	assert.True(t, task.Cancelled())

	assert.False(t, task.Cancel())
	s.Advance(time.Second)
	assert.Equal(t, []bool{false}, results, "отменённая задача не завершается позже")
	assert.Equal(t, 0, s.Pending())
}

func TestAdvanceOrdersByDeadlineThenCreation(t *testing.T) {
	s := NewScheduler()
	var order []string
	s.After(30*time.Millisecond, func(bool) { order = append(order, "c") })
	s.After(10*time.Millisecond, func(bool) { order = append(order, "a") })
	s.After(10*time.Millisecond, func(bool) { order = append(order, "b") })

	s.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestCallbackMaySchedule(t *testing.T) {
	s := NewScheduler()
	var chained bool
	s.After(0, func(bool) {
		s.After(0, func(bool) { chained = true })
	})

	s.Advance(0)
	assert.False(t, chained, "новая задача ждёт следующего тика")
	s.Advance(0)
	assert.True(t, chained)
}

func TestNilTaskCancel(t *testing.T) {
	var task *Task
	assert.False(t, task.Cancel())
}

func TestCancelWithinSameTickWins(t *testing.T) {
	s := NewScheduler()
	var second []bool
	var victim *Task
	var cancelled bool
	s.After(time.Second, func(bool) { cancelled = victim.Cancel() })
	victim = s.After(time.Second, func(completed bool) { second = append(second, completed) })

	assert.Equal(t, 1, s.Advance(time.Second))
	assert.True(t, cancelled, "задача той же пачки ещё не выполнена и отменяема")
	assert.Equal(t, []bool{false}, second)
	assert.True(t, victim.Cancelled())
	assert.Equal(t, 0, s.Pending())

	s.Advance(time.Second)
	assert.Equal(t, []bool{false}, second)
}
