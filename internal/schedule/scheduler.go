// Package schedule моделирует протяжённые во времени действия как задачи
// кооперативного планировщика с логическими тиками.
//
// Задача завершается только внутри Advance и никогда синхронно внутри After.
// Колбэк задачи вызывается ровно один раз: с completed=true по истечении
// срока или с completed=false при отмене.
package schedule

import (
	"sort"
	"sync"
	"time"
)

const (
	taskPending int32 = iota
	taskCompleted
	taskCancelled
)

// Task отложенное действие с внешним токеном отмены
type Task struct {
	id       uint64
	s        *Scheduler
	started  time.Duration
	deadline time.Duration
	fn       func(completed bool)
	status   int32 // защищено s.mu
}

// Scheduler однопоточный планировщик логического времени
type Scheduler struct {
	mu     sync.Mutex
	now    time.Duration
	nextID uint64
	tasks  map[uint64]*Task
}

// NewScheduler создаёт планировщик с нулевым логическим временем
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[uint64]*Task)}
}

// After планирует fn через d логического времени. Отрицательное d считается нулём.
func (s *Scheduler) After(d time.Duration, fn func(completed bool)) *Task {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t := &Task{
		id:       s.nextID,
		s:        s,
		started:  s.now,
		deadline: s.now + d,
		fn:       fn,
	}
	s.tasks[t.id] = t
	return t
}

// Advance продвигает время на dt и завершает все созревшие задачи
// в порядке срока, затем порядка создания. Колбэки вызываются без блокировки,
// поэтому могут планировать новые задачи; те выполнятся не раньше следующего тика.
// Задача пачки, отменённая колбэком предыдущей, получает только completed=false.
// Возвращает число задач, завершённых с completed=true.
func (s *Scheduler) Advance(dt time.Duration) int {
	s.mu.Lock()
	if dt > 0 {
		s.now += dt
	}
	due := make([]*Task, 0)
	for _, t := range s.tasks {
		if t.deadline <= s.now {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline != due[j].deadline {
			return due[i].deadline < due[j].deadline
		}
		return due[i].id < due[j].id
	})
	fired := 0
	for _, t := range due {
		// Статус фиксируется прямо перед вызовом: Cancel из предыдущего колбэка выигрывает
		s.mu.Lock()
		if t.status != taskPending {
			s.mu.Unlock()
			continue
		}
		t.status = taskCompleted
		delete(s.tasks, t.id)
		s.mu.Unlock()

		fired++
		if t.fn != nil {
			t.fn(true)
		}
	}
	return fired
}

// Now текущее логическое время
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending количество незавершённых задач
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Cancel снимает задачу и синхронно вызывает её колбэк с completed=false.
// Возвращает false, если задача уже завершена или отменена.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	s := t.s
	s.mu.Lock()
	if t.status != taskPending {
		s.mu.Unlock()
		return false
	}
	t.status = taskCancelled
	delete(s.tasks, t.id)
	s.mu.Unlock()

	if t.fn != nil {
		t.fn(false)
	}
	return true
}

// Done сообщает, что задача завершена или отменена
func (t *Task) Done() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.status != taskPending
}

// Cancelled сообщает, что задача была отменена
func (t *Task) Cancelled() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.status == taskCancelled
}

// Remaining оставшееся до срока время
func (t *Task) Remaining() time.Duration {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.status != taskPending || t.deadline <= t.s.now {
		return 0
	}
	return t.deadline - t.s.now
}

// Progress доля прошедшего времени в диапазоне [0, 1]
func (t *Task) Progress() float64 {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.status == taskCompleted {
		return 1
	}
	total := t.deadline - t.started
	if total <= 0 {
		return 1
	}
	elapsed := t.s.now - t.started
	if elapsed >= total {
		return 1
	}
	return float64(elapsed) / float64(total)
}
