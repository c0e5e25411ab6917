package model

import "time"

// EvaluationStatus is the lifecycle state of an evaluation round.
type EvaluationStatus string

// Evaluation states.
const (
	EvaluationPending EvaluationStatus = "pending"
	EvaluationExpired EvaluationStatus = "expired"
)

// Rating is one evaluator's score for one teammate.
type Rating struct {
	Rating      int       `json:"rating" dynamodbav:"rating"`
	Comment     string    `json:"comment,omitempty" dynamodbav:"comment,omitempty"`
	EvaluatedAt time.Time `json:"evaluatedAt" dynamodbav:"evaluatedAt"`
}

// Assignment lists the teammates an evaluator must rate.
type Assignment struct {
	EvaluatorName string            `json:"evaluatorName" dynamodbav:"evaluatorName"`
	ToEvaluate    []PlayerRef       `json:"toEvaluate" dynamodbav:"toEvaluate"`
	Completed     bool              `json:"completed" dynamodbav:"completed"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty" dynamodbav:"completedAt,omitempty"`
	Evaluations   map[string]Rating `json:"evaluations" dynamodbav:"evaluations"`
}

// Targets returns the ids of the assigned teammates.
func (a *Assignment) Targets() []string {
	ids := make([]string, len(a.ToEvaluate))
	for i, p := range a.ToEvaluate {
		ids[i] = p.ID
	}
	return ids
}

// TeamSummary describes a side at evaluation time.
type TeamSummary struct {
	Name    string `json:"name" dynamodbav:"name"`
	Players int    `json:"players" dynamodbav:"players"`
}

// OVRUpdate records the outcome of a recalculation for one player.
type OVRUpdate struct {
	PlayerID  string  `json:"playerId" dynamodbav:"playerId"`
	OldOVR    int     `json:"oldOvr" dynamodbav:"oldOvr"`
	NewOVR    int     `json:"newOvr" dynamodbav:"newOvr"`
	AvgRating float64 `json:"avgRating" dynamodbav:"avgRating"`
}

// Evaluation is the peer-review round attached 1:1 to a completed match.
type Evaluation struct {
	MatchID            string                 `json:"matchId" dynamodbav:"matchId"`
	MatchName          string                 `json:"matchName" dynamodbav:"matchName"`
	MatchType          MatchType              `json:"matchType" dynamodbav:"matchType"`
	MatchDate          time.Time              `json:"matchDate" dynamodbav:"matchDate"`
	GroupID            string                 `json:"groupId" dynamodbav:"groupId"`
	CreatedAt          time.Time              `json:"createdAt" dynamodbav:"createdAt"`
	Deadline           time.Time              `json:"deadline" dynamodbav:"deadline"`
	Assignments        map[string]*Assignment `json:"assignments" dynamodbav:"assignments"`
	Completed          map[string]bool        `json:"completed" dynamodbav:"completed"`
	ParticipationRate  float64                `json:"participationRate" dynamodbav:"participationRate"`
	OVRUpdateTriggered bool                   `json:"ovrUpdateTriggered" dynamodbav:"ovrUpdateTriggered"`
	OVRUpdatedAt       *time.Time             `json:"ovrUpdatedAt,omitempty" dynamodbav:"ovrUpdatedAt,omitempty"`
	OVRUpdates         []OVRUpdate            `json:"ovrUpdates,omitempty" dynamodbav:"ovrUpdates,omitempty"`
	RecalcStartedAt    *time.Time             `json:"recalcStartedAt,omitempty" dynamodbav:"recalcStartedAt,omitempty"`
	Status             EvaluationStatus       `json:"status" dynamodbav:"status"`
	ExpiredAt          *time.Time             `json:"expiredAt,omitempty" dynamodbav:"expiredAt,omitempty"`
	TeamA              TeamSummary            `json:"teamA" dynamodbav:"teamA"`
	TeamB              TeamSummary            `json:"teamB" dynamodbav:"teamB"`
	Version            int64                  `json:"version" dynamodbav:"version"`
}

// CompletedCount returns how many evaluators have submitted.
func (e *Evaluation) CompletedCount() int {
	n := 0
	for _, a := range e.Assignments {
		if a.Completed {
			n++
		}
	}
	return n
}

// Rate recomputes the participation rate from the assignments.
func (e *Evaluation) Rate() float64 {
	if len(e.Assignments) == 0 {
		return 0
	}
	return float64(e.CompletedCount()) / float64(len(e.Assignments))
}

// PendingFor reports whether playerID still owes a submission.
func (e *Evaluation) PendingFor(playerID string) bool {
	a, ok := e.Assignments[playerID]
	return ok && !a.Completed && e.Status == EvaluationPending
}

// RatingsByTarget collects every submitted rating per evaluated player.
func (e *Evaluation) RatingsByTarget() map[string][]int {
	out := make(map[string][]int)
	for _, a := range e.Assignments {
		if !a.Completed {
			continue
		}
		for target, r := range a.Evaluations {
			out[target] = append(out[target], r.Rating)
		}
	}
	return out
}

// Clone returns a deep copy.
func (e Evaluation) Clone() Evaluation {
	c := e
	c.Assignments = make(map[string]*Assignment, len(e.Assignments))
	for id, a := range e.Assignments {
		ac := *a
		ac.ToEvaluate = append([]PlayerRef(nil), a.ToEvaluate...)
		ac.Evaluations = make(map[string]Rating, len(a.Evaluations))
		for k, v := range a.Evaluations {
			ac.Evaluations[k] = v
		}
		if a.CompletedAt != nil {
			t := *a.CompletedAt
			ac.CompletedAt = &t
		}
		c.Assignments[id] = &ac
	}
	c.Completed = make(map[string]bool, len(e.Completed))
	for k, v := range e.Completed {
		c.Completed[k] = v
	}
	c.OVRUpdates = append([]OVRUpdate(nil), e.OVRUpdates...)
	c.OVRUpdatedAt = cloneTime(e.OVRUpdatedAt)
	c.RecalcStartedAt = cloneTime(e.RecalcStartedAt)
	c.ExpiredAt = cloneTime(e.ExpiredAt)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// EvaluationLog is an audit row written for every recalculated player.
type EvaluationLog struct {
	ID               string         `json:"id" dynamodbav:"id"`
	MatchID          string         `json:"matchId" dynamodbav:"matchId"`
	PlayerID         string         `json:"playerId" dynamodbav:"playerId"`
	OldOVR           int            `json:"oldOvr" dynamodbav:"oldOvr"`
	NewOVR           int            `json:"newOvr" dynamodbav:"newOvr"`
	AvgRating        float64        `json:"avgRating" dynamodbav:"avgRating"`
	RatingsCount     int            `json:"ratingsCount" dynamodbav:"ratingsCount"`
	AttributeChanges map[string]int `json:"attributeChanges,omitempty" dynamodbav:"attributeChanges,omitempty"`
	CreatedAt        time.Time      `json:"createdAt" dynamodbav:"createdAt"`
}
