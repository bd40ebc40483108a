package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/models"
)

var (
	ErrTeamNotFound           = errors.New("team not found")
	ErrTeamFull               = errors.New("team is full")
	ErrAlreadyTeamMember      = errors.New("already a member of this team")
	ErrInvitationCodeRequired = errors.New("invitation code is required")
	ErrInvitationNotFound     = errors.New("invitation code is invalid or expired")
	ErrNotTeamMember          = errors.New("not a member of this team")
	ErrNotTeamCaptain         = errors.New("only the captain can do this")
	ErrModificationClosed     = errors.New("team can no longer be modified")
	ErrMemberNotFound         = errors.New("member not found")
	ErrCannotRemoveCaptain    = errors.New("the captain cannot be removed")
	ErrTeamClosed             = errors.New("team is no longer open for roster changes")
	errInvitationCodeConflict = errors.New("could not generate a unique invitation code")
)

const (
	invitationCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	invitationCodeLength   = 8
	invitationCodeAttempts = 5

	JoinRedirectSeconds   = 2
	CreateRedirectSeconds = 5
)

// GenerateInvitationCode returns a random code without look-alike characters (0/O, 1/I).
func GenerateInvitationCode() (string, error) {
	limit := big.NewInt(int64(len(invitationCodeAlphabet)))
	b := make([]byte, invitationCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = invitationCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

func NormalizeInvitationCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CanModify reports whether the roster may still change.
func CanModify(team *models.Team, now time.Time) bool {
	return now.Before(team.CanModifyUntil)
}

// CanRemoveMember reports whether viewerID may remove member from team at now.
func CanRemoveMember(team *models.Team, member *models.TeamMember, viewerID uuid.UUID, now time.Time) bool {
	return viewerID == team.CaptainUserID && member.Role != models.RoleCaptain && CanModify(team, now)
}

// RosterOpen reports whether members may still join or leave a team in status.
// Validated and cancelled teams are frozen.
func RosterOpen(status string) bool {
	switch status {
	case models.TeamStatusPending, models.TeamStatusIncomplete, models.TeamStatusComplete:
		return true
	}
	return false
}

// StatusForCount is the roster status once count members have joined.
func StatusForCount(count, minMembers int) string {
	if count >= minMembers {
		return models.TeamStatusComplete
	}
	return models.TeamStatusIncomplete
}

type TeamService struct {
	db            *database.DB
	publisher     Publisher
	invitationTTL time.Duration
	newCode       func() (string, error)
}

func NewTeamService(db *database.DB, publisher Publisher, invitationTTL time.Duration) *TeamService {
	if invitationTTL <= 0 {
		invitationTTL = 30 * 24 * time.Hour
	}
	return &TeamService{
		db:            db,
		publisher:     publisherOrNoop(publisher),
		invitationTTL: invitationTTL,
		newCode:       GenerateInvitationCode,
	}
}

const teamColumns = `id, race_id, name, team_type, captain_user_id, captain_email, captain_phone, status,
	min_members, max_members, current_members_count, payment_mode, can_modify_until, bib_numbers,
	created_at, updated_at`

func scanTeam(row pgx.Row) (*models.Team, error) {
	var t models.Team
	err := row.Scan(&t.ID, &t.RaceID, &t.Name, &t.TeamType, &t.CaptainUserID, &t.CaptainEmail, &t.CaptainPhone, &t.Status,
		&t.MinMembers, &t.MaxMembers, &t.CurrentMembersCount, &t.PaymentMode, &t.CanModifyUntil, &t.BibNumbers,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const memberColumns = `id, team_id, user_id, entry_id, role, position, status, joined_at`

func scanMember(row pgx.Row) (*models.TeamMember, error) {
	var m models.TeamMember
	if err := row.Scan(&m.ID, &m.TeamID, &m.UserID, &m.EntryID, &m.Role, &m.Position, &m.Status, &m.JoinedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

type CreateTeamInput struct {
	RaceID        uuid.UUID `json:"race_id"`
	CaptainUserID uuid.UUID `json:"-"`
	Name          string    `json:"name" validate:"required,max=255"`
	TeamType      string    `json:"team_type"`
	CaptainEmail  string    `json:"captain_email" validate:"required,email"`
	CaptainPhone  string    `json:"captain_phone" validate:"required"`
	PaymentMode   string    `json:"payment_mode" validate:"omitempty,oneof=team individual"`
}

type CreateTeamResult struct {
	Team       *models.Team
	Invitation *models.TeamInvitation
}

// Create registers a team with its captain as first member and issues the invitation
// code the captain shares with teammates.
func (s *TeamService) Create(ctx context.Context, in CreateTeamInput, now time.Time) (*CreateTeamResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.CaptainEmail = strings.TrimSpace(in.CaptainEmail)
	in.CaptainPhone = strings.TrimSpace(in.CaptainPhone)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.TeamType == "" {
		in.TeamType = "mixed"
	}
	if in.PaymentMode == "" {
		in.PaymentMode = models.PaymentModeIndividual
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var minMembers, maxMembers, deadlineDays int
	err = tx.QueryRow(ctx, `
		SELECT team_min_members, team_max_members, team_modify_deadline_days
		FROM races WHERE id = $1
	`, in.RaceID).Scan(&minMembers, &maxMembers, &deadlineDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load race team settings: %w", err)
	}

	canModifyUntil := now.AddDate(0, 0, deadlineDays)
	team, err := scanTeam(tx.QueryRow(ctx, `
		INSERT INTO teams (race_id, name, team_type, captain_user_id, captain_email, captain_phone, status,
			min_members, max_members, current_members_count, payment_mode, can_modify_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
		RETURNING `+teamColumns,
		in.RaceID, in.Name, in.TeamType, in.CaptainUserID, in.CaptainEmail, in.CaptainPhone, models.TeamStatusPending,
		minMembers, maxMembers, in.PaymentMode, canModifyUntil))
	if err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO team_members (team_id, user_id, role, position, status, joined_at)
		VALUES ($1, $2, $3, 1, $4, $5)
	`, team.ID, in.CaptainUserID, models.RoleCaptain, models.MemberStatusJoined, now)
	if err != nil {
		return nil, fmt.Errorf("failed to add captain: %w", err)
	}

	inv, err := s.insertInvitation(ctx, tx, team, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &CreateTeamResult{Team: team, Invitation: inv}, nil
}

// insertInvitation retries on code collisions; ON CONFLICT keeps the transaction usable.
func (s *TeamService) insertInvitation(ctx context.Context, tx pgx.Tx, team *models.Team, now time.Time) (*models.TeamInvitation, error) {
	inv := models.TeamInvitation{
		TeamID:    team.ID,
		Status:    models.InvitationStatusPending,
		MaxUses:   max(team.MaxMembers-1, 1),
		ExpiresAt: now.Add(s.invitationTTL),
	}

	for range invitationCodeAttempts {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate invitation code: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO team_invitations (team_id, invitation_code, status, max_uses, expires_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (invitation_code) DO NOTHING
			RETURNING id, created_at
		`, inv.TeamID, code, inv.Status, inv.MaxUses, inv.ExpiresAt).Scan(&inv.ID, &inv.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create invitation: %w", err)
		}
		inv.InvitationCode = code
		return &inv, nil
	}
	return nil, errInvitationCodeConflict
}

type JoinTeamResult struct {
	Team   *models.Team
	Member *models.TeamMember
}

// JoinByCode adds userID to the team behind code. The team row is locked for the
// duration so concurrent joins cannot overfill it.
func (s *TeamService) JoinByCode(ctx context.Context, code string, userID uuid.UUID, now time.Time) (*JoinTeamResult, error) {
	code = NormalizeInvitationCode(code)
	if code == "" {
		return nil, ErrInvitationCodeRequired
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var inv models.TeamInvitation
	err = tx.QueryRow(ctx, `
		SELECT id, team_id, invitation_code, status, max_uses, uses, expires_at, created_at
		FROM team_invitations
		WHERE invitation_code = $1 AND status = $2 AND expires_at > $3
		FOR UPDATE
	`, code, models.InvitationStatusPending, now).Scan(
		&inv.ID, &inv.TeamID, &inv.InvitationCode, &inv.Status, &inv.MaxUses, &inv.Uses, &inv.ExpiresAt, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invitation: %w", err)
	}

	team, err := scanTeam(tx.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1 FOR UPDATE`, inv.TeamID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock team: %w", err)
	}
	if !RosterOpen(team.Status) {
		return nil, ErrTeamClosed
	}
	if team.CurrentMembersCount >= team.MaxMembers {
		return nil, ErrTeamFull
	}

	// Positions are never reused, removed members included.
	var position int
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position), 0) + 1 FROM team_members WHERE team_id = $1
	`, team.ID).Scan(&position); err != nil {
		return nil, fmt.Errorf("failed to compute member position: %w", err)
	}

	// A removed member may come back; an active one may not join twice.
	member, err := scanMember(tx.QueryRow(ctx, `
		INSERT INTO team_members (team_id, user_id, role, position, status, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (team_id, user_id) DO UPDATE SET
			role = EXCLUDED.role, position = EXCLUDED.position, status = EXCLUDED.status, joined_at = EXCLUDED.joined_at
		WHERE team_members.status = 'removed'
		RETURNING `+memberColumns,
		team.ID, userID, models.RoleMember, position, models.MemberStatusJoined, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlreadyTeamMember
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	team.CurrentMembersCount++
	team.Status = StatusForCount(team.CurrentMembersCount, team.MinMembers)
	team.UpdatedAt = now
	if _, err := tx.Exec(ctx, `
		UPDATE teams SET current_members_count = $1, status = $2, updated_at = $3 WHERE id = $4
	`, team.CurrentMembersCount, team.Status, now, team.ID); err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}

	inv.Uses++
	if inv.Uses >= inv.MaxUses {
		inv.Status = models.InvitationStatusUsed
	}
	if _, err := tx.Exec(ctx, `
		UPDATE team_invitations SET uses = $1, status = $2 WHERE id = $3
	`, inv.Uses, inv.Status, inv.ID); err != nil {
		return nil, fmt.Errorf("failed to update invitation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.publisher.Publish(team.ID, EventMemberJoined, member)
	s.publisher.Publish(team.ID, EventTeamUpdated, team)

	return &JoinTeamResult{Team: team, Member: member}, nil
}

func (s *TeamService) GetByID(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	team, err := scanTeam(s.db.Pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, teamID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTeamNotFound
	}
	return team, err
}

// GetMembers returns the active roster ordered by position.
func (s *TeamService) GetMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT tm.id, tm.team_id, tm.user_id, tm.entry_id, tm.role, tm.position, tm.status, tm.joined_at,
		       u.id, u.email, u.name, u.avatar_url
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1 AND tm.status <> $2
		ORDER BY tm.position
	`, teamID, models.MemberStatusRemoved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []models.TeamMember{}
	for rows.Next() {
		var m models.TeamMember
		var u models.User
		if err := rows.Scan(&m.ID, &m.TeamID, &m.UserID, &m.EntryID, &m.Role, &m.Position, &m.Status, &m.JoinedAt,
			&u.ID, &u.Email, &u.Name, &u.AvatarURL); err != nil {
			return nil, err
		}
		m.User = &u
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *TeamService) GetPendingInvitations(ctx context.Context, teamID uuid.UUID, now time.Time) ([]models.TeamInvitation, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, team_id, invitation_code, status, max_uses, uses, expires_at, created_at
		FROM team_invitations
		WHERE team_id = $1 AND status = $2 AND expires_at > $3
		ORDER BY created_at DESC
	`, teamID, models.InvitationStatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invitations := []models.TeamInvitation{}
	for rows.Next() {
		var inv models.TeamInvitation
		if err := rows.Scan(&inv.ID, &inv.TeamID, &inv.InvitationCode, &inv.Status, &inv.MaxUses, &inv.Uses, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

type DashboardMember struct {
	models.TeamMember
	CanRemove bool `json:"can_remove"`
}

type TeamDashboard struct {
	Team        *models.Team            `json:"team"`
	Members     []DashboardMember       `json:"members"`
	Invitations []models.TeamInvitation `json:"invitations"`
	IsCaptain   bool                    `json:"is_captain"`
	CanModify   bool                    `json:"can_modify"`
}

// Dashboard is the roster view of a team as seen by viewerID, who must be on it.
func (s *TeamService) Dashboard(ctx context.Context, teamID, viewerID uuid.UUID, now time.Time) (*TeamDashboard, error) {
	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	members, err := s.GetMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}

	isMember := false
	rows := make([]DashboardMember, len(members))
	for i := range members {
		if members[i].UserID == viewerID {
			isMember = true
		}
		rows[i] = DashboardMember{
			TeamMember: members[i],
			CanRemove:  CanRemoveMember(team, &members[i], viewerID, now),
		}
	}
	if !isMember {
		return nil, ErrNotTeamMember
	}

	dash := &TeamDashboard{
		Team:        team,
		Members:     rows,
		Invitations: []models.TeamInvitation{},
		IsCaptain:   team.CaptainUserID == viewerID,
		CanModify:   CanModify(team, now),
	}
	if dash.IsCaptain {
		dash.Invitations, err = s.GetPendingInvitations(ctx, teamID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to load invitations: %w", err)
		}
	}
	return dash, nil
}

// IsMember reports whether userID is on the active roster.
func (s *TeamService) IsMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2 AND status <> $3)
	`, teamID, userID, models.MemberStatusRemoved).Scan(&exists)
	return exists, err
}

// RemoveMember soft-deletes a member. Only the captain may do it, only before the
// modification deadline, and never on themselves.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, memberID, actorID uuid.UUID, now time.Time) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	team, err := scanTeam(tx.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1 FOR UPDATE`, teamID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTeamNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock team: %w", err)
	}
	if team.CaptainUserID != actorID {
		return ErrNotTeamCaptain
	}
	if !RosterOpen(team.Status) {
		return ErrTeamClosed
	}
	if !CanModify(team, now) {
		return ErrModificationClosed
	}

	member, err := scanMember(tx.QueryRow(ctx, `
		SELECT `+memberColumns+` FROM team_members WHERE id = $1 AND team_id = $2 AND status <> $3
	`, memberID, teamID, models.MemberStatusRemoved))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrMemberNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load member: %w", err)
	}
	if member.Role == models.RoleCaptain {
		return ErrCannotRemoveCaptain
	}

	if _, err := tx.Exec(ctx, `
		UPDATE team_members SET status = $1 WHERE id = $2
	`, models.MemberStatusRemoved, member.ID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	team.CurrentMembersCount--
	team.Status = StatusForCount(team.CurrentMembersCount, team.MinMembers)
	team.UpdatedAt = now
	if _, err := tx.Exec(ctx, `
		UPDATE teams SET current_members_count = $1, status = $2, updated_at = $3 WHERE id = $4
	`, team.CurrentMembersCount, team.Status, now, team.ID); err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}

	// The freed seat goes back on the team's live invitation.
	if _, err := tx.Exec(ctx, `
		UPDATE team_invitations SET uses = GREATEST(uses - 1, 0), status = $1
		WHERE team_id = $2 AND status IN ($1, $3) AND expires_at > $4
	`, models.InvitationStatusPending, team.ID, models.InvitationStatusUsed, now); err != nil {
		return fmt.Errorf("failed to release invitation use: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	member.Status = models.MemberStatusRemoved
	s.publisher.Publish(team.ID, EventMemberRemoved, member)
	s.publisher.Publish(team.ID, EventTeamUpdated, team)
	return nil
}
