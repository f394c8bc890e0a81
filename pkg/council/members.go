package council

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/synod-ai/synod/pkg/models"
)

// Stage eligibility by role. Voting is defined by exclusion: every
// active member votes except the synthesizer and the moderator.
var (
	opinionRoles = map[models.Role]bool{
		models.RoleOpinionGiver:  true,
		models.RoleDevilAdvocate: true,
		models.RoleCreative:      true,
		models.RoleDomainExpert:  true,
		models.RoleSkeptic:       true,
	}

	reviewRoles = map[models.Role]bool{
		models.RoleReviewer:    true,
		models.RoleFactChecker: true,
		models.RoleCritic:      true,
	}

	nonVotingRoles = map[models.Role]bool{
		models.RoleSynthesizer: true,
		models.RoleModerator:   true,
	}
)

// realizeMembers turns a clamped plan into session members in plan
// insertion order. Backup seats start inactive and join only through
// self-correction; every other seat starts active.
func realizeMembers(plan *models.CouncilPlan) []models.Member {
	members := make([]models.Member, 0, len(plan.Members))
	roleCounts := make(map[models.Role]int, len(plan.Members))

	for _, pm := range plan.Members {
		roleCounts[pm.Role]++

		weight := 1.0
		if pm.Weight != nil {
			weight = *pm.Weight
		}
		isBackup := pm.Role == models.RoleBackup

		members = append(members, models.Member{
			ID:       uuid.New().String(),
			Name:     fmt.Sprintf("%s-%d", pm.Role, roleCounts[pm.Role]),
			Role:     pm.Role,
			ModelID:  pm.Model,
			Persona:  pm.Persona,
			Weight:   weight,
			IsActive: !isBackup,
			IsBackup: isBackup,
		})
	}
	return members
}

// opinionMembers returns the active members that take positions in the
// opinions stage, in realization order.
func opinionMembers(members []models.Member) []models.Member {
	return filterMembers(members, func(m models.Member) bool {
		return m.IsActive && opinionRoles[m.Role]
	})
}

// reviewMembers returns the active members that critique opinions.
func reviewMembers(members []models.Member) []models.Member {
	return filterMembers(members, func(m models.Member) bool {
		return m.IsActive && reviewRoles[m.Role]
	})
}

// votingMembers returns the active members that cast votes. Activated
// backups are included.
func votingMembers(members []models.Member) []models.Member {
	return filterMembers(members, func(m models.Member) bool {
		return m.IsActive && !nonVotingRoles[m.Role]
	})
}

// synthesizerMember picks the member that writes the final answer: the
// first synthesizer seat, or the first member when the plan carries
// none. Plans that passed the safety clamps always carry one.
func synthesizerMember(members []models.Member) (models.Member, bool) {
	for _, m := range members {
		if m.Role == models.RoleSynthesizer {
			return m, true
		}
	}
	if len(members) > 0 {
		return members[0], true
	}
	return models.Member{}, false
}

// activateNextBackup flips the first inactive backup to active and
// returns it. The second return is false when no backup remains.
func activateNextBackup(members []models.Member) (*models.Member, bool) {
	for i := range members {
		if members[i].IsBackup && !members[i].IsActive {
			members[i].IsActive = true
			return &members[i], true
		}
	}
	return nil, false
}

// memberWeights maps member id to voting weight for the weighted tally.
func memberWeights(members []models.Member) map[string]float64 {
	weights := make(map[string]float64, len(members))
	for _, m := range members {
		weights[m.ID] = m.Weight
	}
	return weights
}

func filterMembers(members []models.Member, keep func(models.Member) bool) []models.Member {
	out := make([]models.Member, 0, len(members))
	for _, m := range members {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
