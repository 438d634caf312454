package field

import "github.com/annel0/burrow/internal/action"

// Имена подземных состояний
const (
	StateUndergroundSolid  = "underground_solid"
	StateUndergroundTunnel = "underground_tunnel"
	StateUndergroundOpen   = "underground_open"
)

// UndergroundState общая часть состояний подземной клетки
type UndergroundState struct {
	base
}

// Surface грядка над клеткой или nil
func (s *UndergroundState) Surface() *Entity {
	return s.entity.Linked()
}

func (s *UndergroundState) surfaceIs(name string) bool {
	surface := s.Surface()
	return surface != nil && surface.State().Name() == name
}

// UndergroundSolid нетронутая земля: крот роет ход
type UndergroundSolid struct {
	UndergroundState
	NoHooks
}

func NewUndergroundSolid(e *Entity) State {
	s := &UndergroundSolid{}
	s.init(e, StateUndergroundSolid, s)
	return s
}

func (s *UndergroundSolid) MoleEligible(Caller) bool { return true }

func (s *UndergroundSolid) MoleAction(a *Action) bool {
	return a.Start(action.KindDig, func(completed bool) {
		if completed {
			s.entity.Transition(NewUndergroundTunnel)
		}
	})
}

// UndergroundTunnel вырытый ход: крот ворует морковь сверху или выбирается наружу
type UndergroundTunnel struct {
	UndergroundState
	NoHooks

	stealing *Action // защищено mu
}

func NewUndergroundTunnel(e *Entity) State {
	s := &UndergroundTunnel{}
	s.init(e, StateUndergroundTunnel, s)
	return s
}

func (s *UndergroundTunnel) canSteal(c Caller) bool {
	return s.surfaceIs(StateFarmRipe) && holdingsOf(c).CanCarry(ItemCarrot, 1)
}

func (s *UndergroundTunnel) MoleEligible(Caller) bool {
	return s.Surface() != nil
}

// MoleAction кража, если наверху созрела морковь, иначе выход на поверхность
func (s *UndergroundTunnel) MoleAction(a *Action) bool {
	if s.canSteal(a.Caller) {
		started := a.Start(action.KindSteal, func(completed bool) {
			s.mu.Lock()
			if s.stealing == a {
				s.stealing = nil
			}
			s.mu.Unlock()
			if !completed || !s.surfaceIs(StateFarmRipe) {
				return
			}
			// Грядка меняется по собственной проверке полномочий
			if surface := s.Surface(); surface != nil && surface.Transition(NewFarmEmpty) {
				holdingsOf(a.Caller).Give(ItemCarrot, 1)
			}
		})
		if started {
			s.mu.Lock()
			s.stealing = a
			s.mu.Unlock()
		}
		return started
	}
	return a.Start(action.KindExit, func(completed bool) {
		if completed {
			s.entity.TransitionPair(NewUndergroundOpen, NewFarmMound)
		}
	})
}

// abortSteal отменяет кражу в полёте: морковь наверху уже не созревшая
func (s *UndergroundTunnel) abortSteal() {
	s.mu.Lock()
	a := s.stealing
	s.stealing = nil
	s.mu.Unlock()
	if a != nil && a.task != nil {
		s.cancel(a.task)
	}
}

// UndergroundOpen нора, открытая на поверхность
type UndergroundOpen struct {
	UndergroundState
	NoHooks
}

func NewUndergroundOpen(e *Entity) State {
	s := &UndergroundOpen{}
	s.init(e, StateUndergroundOpen, s)
	return s
}

func (s *UndergroundOpen) MoleEligible(Caller) bool { return true }

// MoleAction крот засыпает выход за собой: ход остаётся, кротовина исчезает.
// Отмена даже после половины работы считается незавершённой.
func (s *UndergroundOpen) MoleAction(a *Action) bool {
	return a.Start(action.KindCollapse, func(completed bool) {
		if completed {
			s.entity.TransitionPair(NewUndergroundTunnel, NewFarmEmpty)
		}
	})
}
