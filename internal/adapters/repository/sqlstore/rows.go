package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

type playerRow struct {
	ID         string      `db:"id"`
	GroupID    string      `db:"group_id"`
	Name       string      `db:"name"`
	Position   string      `db:"position"`
	Attributes string      `db:"attributes"`
	OVR        int         `db:"ovr"`
	PhotoRef   null.String `db:"photo_ref"`
	IsGuest    bool        `db:"is_guest"`
	History    string      `db:"ovr_history"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
	Version    int64       `db:"version"`
}

var playerColumns = []string{
	"id", "group_id", "name", "position", "attributes", "ovr", "photo_ref",
	"is_guest", "ovr_history", "created_at", "updated_at", "version",
}

func (r playerRow) player() (model.Player, error) {
	p := model.Player{
		ID:        r.ID,
		GroupID:   r.GroupID,
		Name:      r.Name,
		Position:  model.Position(r.Position),
		OVR:       r.OVR,
		PhotoRef:  r.PhotoRef.ValueOrZero(),
		IsGuest:   r.IsGuest,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Version:   r.Version,
	}
	if err := json.Unmarshal([]byte(r.Attributes), &p.Attributes); err != nil {
		return model.Player{}, fmt.Errorf("decode attributes of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.History), &p.OVRHistory); err != nil {
		return model.Player{}, fmt.Errorf("decode history of %s: %w", r.ID, err)
	}
	if len(p.OVRHistory) == 0 {
		p.OVRHistory = nil
	}
	return p, nil
}

// playerValues returns the column values of p, keyed for squirrel SetMap.
func playerValues(p model.Player) (map[string]interface{}, error) {
	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return nil, err
	}
	history := []model.HistoryEntry{}
	if p.OVRHistory != nil {
		history = p.OVRHistory
	}
	hist, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":          p.ID,
		"group_id":    p.GroupID,
		"name":        p.Name,
		"position":    string(p.Position),
		"attributes":  string(attrs),
		"ovr":         p.OVR,
		"photo_ref":   null.NewString(p.PhotoRef, p.PhotoRef != ""),
		"is_guest":    p.IsGuest,
		"ovr_history": string(hist),
		"created_at":  utc(p.CreatedAt),
		"updated_at":  utc(p.UpdatedAt),
		"version":     p.Version,
	}, nil
}

type matchRow struct {
	ID             string    `db:"id"`
	GroupID        string    `db:"group_id"`
	Name           string    `db:"name"`
	Date           time.Time `db:"date"`
	PlayersPerTeam int       `db:"players_per_team"`
	Type           string    `db:"type"`
	TeamA          string    `db:"team_a"`
	TeamB          string    `db:"team_b"`
	Status         string    `db:"status"`
	ScoreA         null.Int  `db:"score_a"`
	ScoreB         null.Int  `db:"score_b"`
	CreatedAt      time.Time `db:"created_at"`
	CompletedAt    null.Time `db:"completed_at"`
	Version        int64     `db:"version"`
}

var matchColumns = []string{
	"id", "group_id", "name", "date", "players_per_team", "type", "team_a", "team_b",
	"status", "score_a", "score_b", "created_at", "completed_at", "version",
}

func (r matchRow) match() (model.Match, error) {
	m := model.Match{
		ID:          r.ID,
		GroupID:     r.GroupID,
		Name:        r.Name,
		Date:        r.Date,
		Format:      model.Format{PlayersPerTeam: r.PlayersPerTeam},
		Type:        model.MatchType(r.Type),
		Status:      model.MatchStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt.Ptr(),
		Version:     r.Version,
	}
	if err := json.Unmarshal([]byte(r.TeamA), &m.TeamA); err != nil {
		return model.Match{}, fmt.Errorf("decode team A of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.TeamB), &m.TeamB); err != nil {
		return model.Match{}, fmt.Errorf("decode team B of %s: %w", r.ID, err)
	}
	if r.ScoreA.Valid && r.ScoreB.Valid {
		m.Result = &model.Result{ScoreA: int(r.ScoreA.Int64), ScoreB: int(r.ScoreB.Int64)}
	}
	return m, nil
}

func matchValues(m model.Match) (map[string]interface{}, error) {
	teamA, err := json.Marshal(m.TeamA)
	if err != nil {
		return nil, err
	}
	teamB, err := json.Marshal(m.TeamB)
	if err != nil {
		return nil, err
	}
	var scoreA, scoreB null.Int
	if m.Result != nil {
		scoreA, scoreB = null.IntFrom(int64(m.Result.ScoreA)), null.IntFrom(int64(m.Result.ScoreB))
	}
	var completed null.Time
	if m.CompletedAt != nil {
		completed = null.TimeFrom(utc(*m.CompletedAt))
	}
	return map[string]interface{}{
		"id":               m.ID,
		"group_id":         m.GroupID,
		"name":             m.Name,
		"date":             utc(m.Date),
		"players_per_team": m.Format.PlayersPerTeam,
		"type":             string(m.Type),
		"team_a":           string(teamA),
		"team_b":           string(teamB),
		"status":           string(m.Status),
		"score_a":          scoreA,
		"score_b":          scoreB,
		"created_at":       utc(m.CreatedAt),
		"completed_at":     completed,
		"version":          m.Version,
	}, nil
}

type evaluationRow struct {
	Doc     string `db:"doc"`
	Version int64  `db:"version"`
}

func (r evaluationRow) evaluation() (model.Evaluation, error) {
	var e model.Evaluation
	if err := json.Unmarshal([]byte(r.Doc), &e); err != nil {
		return model.Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}
	if e.Assignments == nil {
		e.Assignments = map[string]*model.Assignment{}
	}
	if e.Completed == nil {
		e.Completed = map[string]bool{}
	}
	e.Version = r.Version
	return e, nil
}

// evaluationValues keeps the queried fields in columns and the whole record in doc.
func evaluationValues(e model.Evaluation) (map[string]interface{}, error) {
	doc, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var recalc null.Time
	if e.RecalcStartedAt != nil {
		recalc = null.TimeFrom(utc(*e.RecalcStartedAt))
	}
	return map[string]interface{}{
		"match_id":             e.MatchID,
		"group_id":             e.GroupID,
		"status":               string(e.Status),
		"created_at":           utc(e.CreatedAt),
		"deadline":             utc(e.Deadline),
		"ovr_update_triggered": e.OVRUpdateTriggered,
		"recalc_started_at":    recalc,
		"doc":                  string(doc),
		"version":              e.Version,
	}, nil
}

type logRow struct {
	ID               string      `db:"id"`
	MatchID          string      `db:"match_id"`
	PlayerID         string      `db:"player_id"`
	OldOVR           int         `db:"old_ovr"`
	NewOVR           int         `db:"new_ovr"`
	AvgRating        float64     `db:"avg_rating"`
	RatingsCount     int         `db:"ratings_count"`
	AttributeChanges null.String `db:"attribute_changes"`
	CreatedAt        time.Time   `db:"created_at"`
}

func (r logRow) log() (model.EvaluationLog, error) {
	l := model.EvaluationLog{
		ID:           r.ID,
		MatchID:      r.MatchID,
		PlayerID:     r.PlayerID,
		OldOVR:       r.OldOVR,
		NewOVR:       r.NewOVR,
		AvgRating:    r.AvgRating,
		RatingsCount: r.RatingsCount,
		CreatedAt:    r.CreatedAt,
	}
	if r.AttributeChanges.Valid {
		if err := json.Unmarshal([]byte(r.AttributeChanges.String), &l.AttributeChanges); err != nil {
			return model.EvaluationLog{}, fmt.Errorf("decode log %s: %w", r.ID, err)
		}
	}
	return l, nil
}
