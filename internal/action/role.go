package action

import (
	"fmt"
	"strings"
)

// Role одна из двух взаимоисключающих ролей участника сессии.
// Нулевое значение RoleNone не допускается ни к одному действию.
type Role uint8

const (
	RoleNone   Role = iota
	RoleFarmer      // защитник: сажает, поливает, собирает урожай
	RoleMole        // нападающий: роет ходы и ворует морковь
)

// String возвращает имя роли
func (r Role) String() string {
	switch r {
	case RoleFarmer:
		return "farmer"
	case RoleMole:
		return "mole"
	default:
		return "none"
	}
}

// Opponent возвращает противоположную роль
func (r Role) Opponent() Role {
	switch r {
	case RoleFarmer:
		return RoleMole
	case RoleMole:
		return RoleFarmer
	default:
		return RoleNone
	}
}

// ParseRole разбирает имя роли; принимает также defender/attacker
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "farmer", "defender":
		return RoleFarmer, nil
	case "mole", "attacker":
		return RoleMole, nil
	default:
		return RoleNone, fmt.Errorf("неизвестная роль %q", s)
	}
}
