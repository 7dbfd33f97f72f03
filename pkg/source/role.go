package source

import (
	"github.com/nais/botdeploy/pkg/heroku"
)

const (
	RoleWorker = "worker"
	RoleWeb    = "web"
)

// DefaultBaseline lists the process types that are always scaled explicitly,
// so a type created implicitly by the platform never keeps running.
var DefaultBaseline = []string{RoleWeb, RoleWorker}

// RolePolicy decides which declared process type runs the bot.
type RolePolicy struct {
	// Selected when declared.
	Preferred string
	// Selected when nothing is declared.
	Default string
}

func DefaultPolicy() RolePolicy {
	return RolePolicy{
		Preferred: RoleWorker,
		Default:   RoleWorker,
	}
}

func (p RolePolicy) withDefaults() RolePolicy {
	if len(p.Preferred) == 0 {
		p.Preferred = RoleWorker
	}
	if len(p.Default) == 0 {
		p.Default = RoleWorker
	}
	return p
}

// Select picks the preferred role if declared, otherwise the first declared role,
// otherwise the default role.
func (p RolePolicy) Select(declared []string) string {
	p = p.withDefaults()
	for _, role := range declared {
		if role == p.Preferred {
			return role
		}
	}
	if len(declared) > 0 {
		return declared[0]
	}
	return p.Default
}

// Formation scales the selected role to one dyno and every other declared or baseline role to zero.
func Formation(selected string, declared, baseline []string) []heroku.FormationUpdate {
	updates := []heroku.FormationUpdate{
		{Type: selected, Quantity: 1},
	}
	seen := map[string]bool{selected: true}

	for _, roles := range [][]string{declared, baseline} {
		for _, role := range roles {
			if seen[role] {
				continue
			}
			seen[role] = true
			updates = append(updates, heroku.FormationUpdate{Type: role, Quantity: 0})
		}
	}

	return updates
}
