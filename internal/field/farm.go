package field

import "github.com/annel0/burrow/internal/action"

// Имена состояний грядки
const (
	StateFarmEmpty   = "farm_empty"
	StateFarmPlanted = "farm_planted"
	StateFarmRipe    = "farm_ripe"
	StateFarmMound   = "farm_mound"
)

// FarmState общая часть состояний грядки на поверхности
type FarmState struct {
	base
}

// Underground подземная клетка под грядкой или nil
func (s *FarmState) Underground() *Entity {
	return s.entity.Linked()
}

// FarmEmpty пустая грядка: фермер сажает семя
type FarmEmpty struct {
	FarmState
	NoHooks
}

func NewFarmEmpty(e *Entity) State {
	s := &FarmEmpty{}
	s.init(e, StateFarmEmpty, s)
	return s
}

func (s *FarmEmpty) FarmerEligible(c Caller) bool {
	return holdingsOf(c).Count(ItemSeed) > 0
}

// FarmerAction посадка. Отмена не тратит семя.
func (s *FarmEmpty) FarmerAction(a *Action) bool {
	return a.Start(action.KindPlant, func(completed bool) {
		if !completed {
			return
		}
		if s.entity.Transition(NewFarmPlanted) {
			holdingsOf(a.Caller).Take(ItemSeed, 1)
		}
	})
}

// FarmPlanted посаженное семя: фермер поливает
type FarmPlanted struct {
	FarmState
	NoHooks

	watered float64 // накопленная доля полива
}

func NewFarmPlanted(e *Entity) State {
	s := &FarmPlanted{}
	s.init(e, StateFarmPlanted, s)
	return s
}

func (s *FarmPlanted) FarmerEligible(c Caller) bool {
	return holdingsOf(c).Count(ItemWateringCan) > 0
}

// FarmerAction полив. Прерванный полив не теряется: следующий длится только остаток.
func (s *FarmPlanted) FarmerAction(a *Action) bool {
	remaining := 1 - s.watered
	return a.StartFor(action.KindWater, remaining, func(completed bool) {
		if completed {
			s.entity.Transition(NewFarmRipe)
			return
		}
		s.watered += remaining * a.Progress()
		if s.watered > 1 {
			s.watered = 1
		}
	})
}

// Watered доля уже выполненного полива
func (s *FarmPlanted) Watered() float64 {
	return s.watered
}

// FarmRipe созревшая морковь: фермер собирает урожай
type FarmRipe struct {
	FarmState
	NoHooks
}

func NewFarmRipe(e *Entity) State {
	s := &FarmRipe{}
	s.init(e, StateFarmRipe, s)
	return s
}

func (s *FarmRipe) FarmerEligible(c Caller) bool {
	return holdingsOf(c).CanCarry(ItemCarrot, 1)
}

// FarmerAction сбор урожая. Отмена ничего не меняет.
func (s *FarmRipe) FarmerAction(a *Action) bool {
	return a.Start(action.KindHarvest, func(completed bool) {
		if !completed {
			return
		}
		if s.entity.Transition(NewFarmEmpty) {
			holdingsOf(a.Caller).Give(ItemCarrot, 1)
		}
	})
}

// OnExit урожая больше нет: кража снизу в полёте прерывается
func (s *FarmRipe) OnExit() {
	u := s.Underground()
	if u == nil {
		return
	}
	if tunnel, ok := u.State().(*UndergroundTunnel); ok {
		tunnel.abortSteal()
	}
}

// FarmMound кротовина над открытой норой
type FarmMound struct {
	FarmState
	NoHooks
}

func NewFarmMound(e *Entity) State {
	s := &FarmMound{}
	s.init(e, StateFarmMound, s)
	return s
}

func (s *FarmMound) FarmerEligible(c Caller) bool {
	return holdingsOf(c).Count(ItemShovel) > 0
}

// FarmerAction фермер засыпает нору целиком: грядка пустеет, ход под ней обрушается
func (s *FarmMound) FarmerAction(a *Action) bool {
	return a.Start(action.KindCollapse, func(completed bool) {
		if completed {
			s.entity.TransitionPair(NewFarmEmpty, NewUndergroundSolid)
		}
	})
}

func (s *FarmMound) MoleEligible(Caller) bool {
	return s.Underground() != nil
}

// MoleAction крот ныряет в нору; состояние не меняется
func (s *FarmMound) MoleAction(a *Action) bool {
	return a.Start(action.KindEnter, nil)
}
