package models

// Role defines the behavioral archetype of a council member.
type Role string

const (
	// RoleOpinionGiver states a clear position with reasoning and confidence.
	RoleOpinionGiver Role = "opinion-giver"
	// RoleReviewer evaluates each opinion for strengths and weaknesses.
	RoleReviewer Role = "reviewer"
	// RoleSynthesizer produces the final consensus answer.
	RoleSynthesizer Role = "synthesizer"
	// RoleBackup contributes a fresh perspective during self-correction.
	RoleBackup Role = "backup"
	// RoleArbiter tie-breaks between competing positions.
	RoleArbiter Role = "arbiter"
	// RoleDevilAdvocate opposes the emerging consensus.
	RoleDevilAdvocate Role = "devil-advocate"
	// RoleFactChecker classifies claims by verifiability.
	RoleFactChecker Role = "fact-checker"
	// RoleDomainExpert provides specialist depth.
	RoleDomainExpert Role = "domain-expert"
	// RoleModerator facilitates neutrally and summarizes open questions.
	RoleModerator Role = "moderator"
	// RoleSkeptic surfaces hidden assumptions and demands evidence.
	RoleSkeptic Role = "skeptic"
	// RoleCreative produces unconventional alternatives.
	RoleCreative Role = "creative"
	// RoleCritic critiques constructively with improvement suggestions.
	RoleCritic Role = "critic"
)

// IsValid checks if the role is one of the defined archetypes.
func (r Role) IsValid() bool {
	switch r {
	case RoleOpinionGiver, RoleReviewer, RoleSynthesizer, RoleBackup,
		RoleArbiter, RoleDevilAdvocate, RoleFactChecker, RoleDomainExpert,
		RoleModerator, RoleSkeptic, RoleCreative, RoleCritic:
		return true
	default:
		return false
	}
}

// AllRoles lists every defined role in a stable order.
func AllRoles() []Role {
	return []Role{
		RoleOpinionGiver, RoleReviewer, RoleSynthesizer, RoleBackup,
		RoleArbiter, RoleDevilAdvocate, RoleFactChecker, RoleDomainExpert,
		RoleModerator, RoleSkeptic, RoleCreative, RoleCritic,
	}
}

// Stage identifies one bounded unit of the deliberation pipeline.
type Stage string

const (
	// StageOpinions is the initial position-taking round.
	StageOpinions Stage = "opinions"
	// StageReview critiques the collected opinions.
	StageReview Stage = "review"
	// StageVoting collects structured votes and tallies them.
	StageVoting Stage = "voting"
	// StageSynthesis produces the final consensus answer.
	StageSynthesis Stage = "synthesis"
)

// IsValid checks if the stage is one of the pipeline stages.
func (s Stage) IsValid() bool {
	switch s {
	case StageOpinions, StageReview, StageVoting, StageSynthesis:
		return true
	default:
		return false
	}
}

// SessionStatus tracks the lifecycle of a deliberation session.
type SessionStatus string

const (
	// SessionStatusPending means the session is created but not started.
	SessionStatusPending SessionStatus = "pending"
	// SessionStatusRunning means at least one stage has started.
	SessionStatusRunning SessionStatus = "running"
	// SessionStatusCompleted means synthesis produced a final answer.
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusFailed means the session terminated without an answer.
	SessionStatusFailed SessionStatus = "failed"
)

// IsValid checks if the status is a defined lifecycle state.
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusPending, SessionStatusRunning, SessionStatusCompleted, SessionStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is a final state.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// VotingMethod selects the tally algorithm used at the voting stage.
type VotingMethod string

const (
	// VotingMethodMajority wins with strictly more than half the votes.
	VotingMethodMajority VotingMethod = "majority"
	// VotingMethodSuperMajority wins at or above a configurable fraction.
	VotingMethodSuperMajority VotingMethod = "super-majority"
	// VotingMethodUnanimous requires every vote on one position.
	VotingMethodUnanimous VotingMethod = "unanimous"
	// VotingMethodWeighted scores positions by member weight times confidence.
	VotingMethodWeighted VotingMethod = "weighted"
	// VotingMethodConfidence scores positions by summed confidence.
	VotingMethodConfidence VotingMethod = "confidence"
	// VotingMethodRankedChoice runs instant-runoff rounds over ranked ballots.
	VotingMethodRankedChoice VotingMethod = "ranked-choice"
	// VotingMethodVeto is majority voting where any veto blocks consensus.
	VotingMethodVeto VotingMethod = "veto"
)

// IsValid checks if the voting method is supported.
func (m VotingMethod) IsValid() bool {
	switch m {
	case VotingMethodMajority, VotingMethodSuperMajority, VotingMethodUnanimous,
		VotingMethodWeighted, VotingMethodConfidence, VotingMethodRankedChoice,
		VotingMethodVeto:
		return true
	default:
		return false
	}
}

// Complexity grades how demanding a question is for the planner.
type Complexity string

const (
	// ComplexitySimple needs only a minimal council.
	ComplexitySimple Complexity = "simple"
	// ComplexityModerate needs a standard council.
	ComplexityModerate Complexity = "moderate"
	// ComplexityComplex benefits from iteration and more members.
	ComplexityComplex Complexity = "complex"
	// ComplexityExpert needs the largest councils and escalated planning.
	ComplexityExpert Complexity = "expert"
)

// IsValid checks if the complexity grade is defined.
func (c Complexity) IsValid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex, ComplexityExpert:
		return true
	default:
		return false
	}
}

// RequiresEscalation reports whether hybrid planning hands this grade
// to the planner model.
func (c Complexity) RequiresEscalation() bool {
	return c == ComplexityComplex || c == ComplexityExpert
}

// IterationStrategy shapes how follow-up iterations are prompted.
type IterationStrategy string

const (
	// IterationStrategyRefine sharpens the previous answer.
	IterationStrategyRefine IterationStrategy = "refine"
	// IterationStrategyEscalate raises scrutiny on weak points.
	IterationStrategyEscalate IterationStrategy = "escalate"
	// IterationStrategySpecialize narrows focus to open questions.
	IterationStrategySpecialize IterationStrategy = "specialize"
	// IterationStrategyDebate pits the leading positions against each other.
	IterationStrategyDebate IterationStrategy = "debate"
)

// IsValid checks if the iteration strategy is defined.
func (s IterationStrategy) IsValid() bool {
	switch s {
	case IterationStrategyRefine, IterationStrategyEscalate,
		IterationStrategySpecialize, IterationStrategyDebate:
		return true
	default:
		return false
	}
}

// PlannerMode selects how council plans are produced.
type PlannerMode string

const (
	// PlannerModeStatic plans from ordered rules and fixed presets.
	PlannerModeStatic PlannerMode = "static"
	// PlannerModeModel plans via a model call with strict JSON schema output.
	PlannerModeModel PlannerMode = "model"
	// PlannerModeHybrid plans statically and escalates complex questions to the model.
	PlannerModeHybrid PlannerMode = "hybrid"
)

// IsValid checks if the planner mode is defined.
func (m PlannerMode) IsValid() bool {
	return m == PlannerModeStatic || m == PlannerModeModel || m == PlannerModeHybrid
}
