package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/platformbuilds/escalate-core/internal/models"
)

// GetTeam fetches a team's name and member roster. Inactive members are
// included; the resolver decides what to do with them.
func (s *Store) GetTeam(ctx context.Context, teamID string) (string, []models.TeamMember, error) {
	var name string
	err := s.DB.QueryRowContext(ctx, `SELECT name FROM teams WHERE id = ?`, teamID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil, fmt.Errorf("team not found: %s", teamID)
	}
	if err != nil {
		return "", nil, fmt.Errorf("get team %s: %w", teamID, err)
	}

	rows, err := s.DB.QueryContext(ctx, `
        SELECT member_id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(phone, ''), role, active
          FROM team_members WHERE team_id = ?
         ORDER BY role, member_id`, teamID)
	if err != nil {
		return "", nil, fmt.Errorf("get team members for %s: %w", teamID, err)
	}
	defer rows.Close()

	var members []models.TeamMember
	for rows.Next() {
		var m models.TeamMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Role, &m.Active); err != nil {
			return "", nil, fmt.Errorf("scan team member: %w", err)
		}
		members = append(members, m)
	}
	return name, members, rows.Err()
}

// GetTeamOverride returns the team's escalation override, or nil when the
// team has none configured.
func (s *Store) GetTeamOverride(ctx context.Context, teamID string) (*models.TeamOverride, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx, `SELECT payload FROM team_overrides WHERE team_id = ?`, teamID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get team override for %s: %w", teamID, err)
	}

	var override models.TeamOverride
	if err := json.Unmarshal([]byte(payload), &override); err != nil {
		return nil, fmt.Errorf("decode team override for %s: %w", teamID, err)
	}
	override.TeamID = teamID
	return &override, nil
}
