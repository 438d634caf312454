package action

import (
	"fmt"
	"strings"
)

// Kind перечисляет глаголы действий, которые поддерживают поля и хранилища.
// Набор закрыт: новые значения добавляются только здесь.
type Kind uint8

const (
	KindNone Kind = iota // отклонённая попытка взаимодействия
	KindAttack
	KindPlant
	KindWater
	KindHarvest
	KindRemove
	KindDig
	KindCollapse
	KindEnter
	KindExit
	KindPickUp
	KindDeposit
	KindSteal
	KindRespawn
	KindDeath
	KindVictory
	KindDefeat

	kindCount
)

var kindNames = [kindCount]string{
	KindNone:     "none",
	KindAttack:   "attack",
	KindPlant:    "plant",
	KindWater:    "water",
	KindHarvest:  "harvest",
	KindRemove:   "remove",
	KindDig:      "dig",
	KindCollapse: "collapse",
	KindEnter:    "enter",
	KindExit:     "exit",
	KindPickUp:   "pick_up",
	KindDeposit:  "deposit",
	KindSteal:    "steal",
	KindRespawn:  "respawn",
	KindDeath:    "death",
	KindVictory:  "victory",
	KindDefeat:   "defeat",
}

// String возвращает имя действия в snake_case
func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid сообщает, входит ли значение в закрытый набор
func (k Kind) Valid() bool {
	return k < kindCount
}

// Kinds возвращает все действия в порядке объявления
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := KindNone; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind разбирает имя действия (регистр и дефисы не важны)
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return KindNone, fmt.Errorf("неизвестное действие %q", s)
}
