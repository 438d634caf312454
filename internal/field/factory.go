package field

import "sort"

type stateSpec struct {
	kind    EntityKind
	factory StateFactory
}

var stateSpecs = map[string]stateSpec{
	StateFarmEmpty:         {KindFarm, NewFarmEmpty},
	StateFarmPlanted:       {KindFarm, NewFarmPlanted},
	StateFarmRipe:          {KindFarm, NewFarmRipe},
	StateFarmMound:         {KindFarm, NewFarmMound},
	StateUndergroundSolid:  {KindUnderground, NewUndergroundSolid},
	StateUndergroundTunnel: {KindUnderground, NewUndergroundTunnel},
	StateUndergroundOpen:   {KindUnderground, NewUndergroundOpen},
}

// FactoryFor возвращает конструктор состояния по имени
func FactoryFor(name string) (StateFactory, EntityKind, bool) {
	spec, ok := stateSpecs[name]
	if !ok {
		return nil, 0, false
	}
	return spec.factory, spec.kind, true
}

// StateNames все зарегистрированные имена состояний по алфавиту
func StateNames() []string {
	names := make([]string, 0, len(stateSpecs))
	for name := range stateSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
