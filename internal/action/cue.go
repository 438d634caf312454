package action

import "fmt"

// Cue идентификатор звукового или визуального отклика (ключ ассета).
type Cue string

// Lookup ищет отклик для пары (действие, роль). Отсутствие записи не ошибка.
type Lookup func(kind Kind, role Role) (Cue, bool)

// Sink проигрывает найденный отклик. Реализация (звук, частицы) живёт снаружи.
type Sink func(cue Cue)

// Feedback связывает поиск отклика с его воспроизведением.
type Feedback struct {
	Lookup Lookup
	Sink   Sink
}

// Trigger проигрывает отклик для пары, если он задан
func (f Feedback) Trigger(kind Kind, role Role) {
	if f.Lookup == nil || f.Sink == nil {
		return
	}
	if cue, ok := f.Lookup(kind, role); ok && cue != "" {
		f.Sink(cue)
	}
}

type cueKey struct {
	kind Kind
	role Role
}

// CueEntry строка таблицы откликов из конфигурации
type CueEntry struct {
	Kind string `yaml:"kind"`
	Role string `yaml:"role"`
	Cue  string `yaml:"cue"`
}

// CueTable неизменяемая таблица откликов (действие, роль) -> Cue
type CueTable struct {
	cues map[cueKey]Cue
}

// NewCueTable строит таблицу из записей конфигурации
func NewCueTable(entries []CueEntry) (*CueTable, error) {
	t := &CueTable{cues: make(map[cueKey]Cue, len(entries))}
	for i, e := range entries {
		kind, err := ParseKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("cue #%d: %w", i, err)
		}
		role, err := ParseRole(e.Role)
		if err != nil {
			return nil, fmt.Errorf("cue #%d: %w", i, err)
		}
		t.cues[cueKey{kind: kind, role: role}] = Cue(e.Cue)
	}
	return t, nil
}

// Lookup реализует action.Lookup
func (t *CueTable) Lookup(kind Kind, role Role) (Cue, bool) {
	if t == nil {
		return "", false
	}
	cue, ok := t.cues[cueKey{kind: kind, role: role}]
	return cue, ok
}

// Len количество записей
func (t *CueTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.cues)
}
