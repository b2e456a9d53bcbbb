package access

import (
	"errors"

	"opsdesk/internal/model"

	"gorm.io/gorm"
)

// rolePriority ranks the built-in roles; higher wins.
var rolePriority = map[string]int{
	model.RoleAdmin:      50,
	model.RoleManager:    40,
	model.RoleTeamlead:   30,
	model.RoleAccountant: 20,
	model.RoleAssociate:  10,
}

// ResolveRole picks the session role out of everything assigned to a user:
// the highest-priority role, admin always first. Unknown roles rank below
// every built-in role and tie-break by name so the result is stable.
func ResolveRole(roles []string) string {
	best := ""
	bestRank := -1
	for _, r := range roles {
		if r == "" {
			continue
		}
		rank := rolePriority[r]
		if rank > bestRank || (rank == bestRank && r < best) {
			best, bestRank = r, rank
		}
	}
	return best
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
