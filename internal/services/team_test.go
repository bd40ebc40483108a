package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/models"
)

func setupTeamService(t *testing.T) (*TeamService, pgxmock.PgxPoolIface, *recordingPublisher) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	pub := &recordingPublisher{}
	db := &database.DB{Pool: mock}
	return NewTeamService(db, pub, 30*24*time.Hour), mock, pub
}

var teamCols = []string{"id", "race_id", "name", "team_type", "captain_user_id", "captain_email", "captain_phone", "status",
	"min_members", "max_members", "current_members_count", "payment_mode", "can_modify_until", "bib_numbers",
	"created_at", "updated_at"}

var memberCols = []string{"id", "team_id", "user_id", "entry_id", "role", "position", "status", "joined_at"}

var invitationCols = []string{"id", "team_id", "invitation_code", "status", "max_uses", "uses", "expires_at", "created_at"}

func teamRow(team *models.Team) *pgxmock.Rows {
	return pgxmock.NewRows(teamCols).AddRow(team.ID, team.RaceID, team.Name, team.TeamType, team.CaptainUserID,
		team.CaptainEmail, team.CaptainPhone, team.Status, team.MinMembers, team.MaxMembers, team.CurrentMembersCount,
		team.PaymentMode, team.CanModifyUntil, []int32{}, team.CreatedAt, team.UpdatedAt)
}

func sampleTeam(now time.Time) *models.Team {
	return &models.Team{
		ID:                  uuid.New(),
		RaceID:              uuid.New(),
		Name:                "Les Gazelles",
		TeamType:            "mixed",
		CaptainUserID:       uuid.New(),
		CaptainEmail:        "captain@example.com",
		CaptainPhone:        "+33600000000",
		Status:              models.TeamStatusPending,
		MinMembers:          2,
		MaxMembers:          4,
		CurrentMembersCount: 1,
		PaymentMode:         models.PaymentModeIndividual,
		CanModifyUntil:      now.AddDate(0, 0, 7),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func TestGenerateInvitationCode(t *testing.T) {
	seen := map[string]bool{}
	for range 50 {
		code, err := GenerateInvitationCode()
		require.NoError(t, err)
		assert.Len(t, code, 8)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(invitationCodeAlphabet, r), "unexpected rune %q", r)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestNormalizeInvitationCode(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizeInvitationCode("  abc123 "))
	assert.Equal(t, "ABC123", NormalizeInvitationCode("ABC123"))
	assert.Equal(t, "", NormalizeInvitationCode("   "))
}

func TestStatusForCount(t *testing.T) {
	assert.Equal(t, models.TeamStatusIncomplete, StatusForCount(1, 2))
	assert.Equal(t, models.TeamStatusComplete, StatusForCount(2, 2))
	assert.Equal(t, models.TeamStatusComplete, StatusForCount(4, 2))
}

func TestRosterOpen(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{models.TeamStatusPending, true},
		{models.TeamStatusIncomplete, true},
		{models.TeamStatusComplete, true},
		{models.TeamStatusValidated, false},
		{models.TeamStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, RosterOpen(tt.status))
		})
	}
}

func TestCanRemoveMember(t *testing.T) {
	now := time.Now()
	team := sampleTeam(now)
	member := &models.TeamMember{Role: models.RoleMember}
	captain := &models.TeamMember{Role: models.RoleCaptain}

	assert.True(t, CanRemoveMember(team, member, team.CaptainUserID, now))
	assert.False(t, CanRemoveMember(team, captain, team.CaptainUserID, now))
	assert.False(t, CanRemoveMember(team, member, uuid.New(), now))
	assert.False(t, CanRemoveMember(team, member, team.CaptainUserID, team.CanModifyUntil.Add(time.Second)))
	assert.False(t, CanModify(team, team.CanModifyUntil))
}

func TestTeamService_Create(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	codes := []string{"TAKEN234", "GZL7KQ2M"}
	svc.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	team := sampleTeam(now)
	invID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT team_min_members, team_max_members, team_modify_deadline_days`).
		WithArgs(team.RaceID).
		WillReturnRows(pgxmock.NewRows([]string{"team_min_members", "team_max_members", "team_modify_deadline_days"}).AddRow(2, 4, 7))
	mock.ExpectQuery(`INSERT INTO teams`).
		WithArgs(team.RaceID, team.Name, "mixed", team.CaptainUserID, team.CaptainEmail, team.CaptainPhone,
			models.TeamStatusPending, 2, 4, models.PaymentModeIndividual, now.AddDate(0, 0, 7)).
		WillReturnRows(teamRow(team))
	mock.ExpectExec(`INSERT INTO team_members`).
		WithArgs(team.ID, team.CaptainUserID, models.RoleCaptain, models.MemberStatusJoined, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`INSERT INTO team_invitations`).
		WithArgs(team.ID, "TAKEN234", models.InvitationStatusPending, 3, now.Add(30*24*time.Hour)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO team_invitations`).
		WithArgs(team.ID, "GZL7KQ2M", models.InvitationStatusPending, 3, now.Add(30*24*time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(invID, now))
	mock.ExpectCommit()

	res, err := svc.Create(ctx, CreateTeamInput{
		RaceID:        team.RaceID,
		CaptainUserID: team.CaptainUserID,
		Name:          " Les Gazelles ",
		CaptainEmail:  team.CaptainEmail,
		CaptainPhone:  team.CaptainPhone,
	}, now)

	require.NoError(t, err)
	assert.Equal(t, team.ID, res.Team.ID)
	assert.Equal(t, "GZL7KQ2M", res.Invitation.InvitationCode)
	assert.Equal(t, invID, res.Invitation.ID)
	assert.Equal(t, 3, res.Invitation.MaxUses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_Create_TransactionRollback(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	ctx := context.Background()
	now := time.Now()
	team := sampleTeam(now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT team_min_members`).
		WithArgs(team.RaceID).
		WillReturnRows(pgxmock.NewRows([]string{"team_min_members", "team_max_members", "team_modify_deadline_days"}).AddRow(2, 4, 7))
	mock.ExpectQuery(`INSERT INTO teams`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(teamRow(team))

	// Captain insert fails
	mock.ExpectExec(`INSERT INTO team_members`).
		WithArgs(team.ID, team.CaptainUserID, models.RoleCaptain, models.MemberStatusJoined, now).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := svc.Create(ctx, CreateTeamInput{
		RaceID: team.RaceID, CaptainUserID: team.CaptainUserID, Name: team.Name,
		CaptainEmail: team.CaptainEmail, CaptainPhone: team.CaptainPhone,
	}, now)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_Create_InvalidInput(t *testing.T) {
	svc, mock, _ := setupTeamService(t)

	_, err := svc.Create(context.Background(), CreateTeamInput{RaceID: uuid.New(), Name: "  ", CaptainEmail: "nope"}, time.Now())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"name", "captain_email", "captain_phone"}, verr.Fields)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_JoinByCode(t *testing.T) {
	svc, mock, pub := setupTeamService(t)
	ctx := context.Background()
	now := time.Now()
	team := sampleTeam(now)
	userID, invID, memberID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM team_invitations`).
		WithArgs("GZL7KQ2M", models.InvitationStatusPending, now).
		WillReturnRows(pgxmock.NewRows(invitationCols).
			AddRow(invID, team.ID, "GZL7KQ2M", models.InvitationStatusPending, 3, 0, now.Add(time.Hour), now))
	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1 FOR UPDATE`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\), 0\) \+ 1 FROM team_members`).
		WithArgs(team.ID).
		WillReturnRows(pgxmock.NewRows([]string{"position"}).AddRow(2))
	mock.ExpectQuery(`INSERT INTO team_members`).
		WithArgs(team.ID, userID, models.RoleMember, 2, models.MemberStatusJoined, now).
		WillReturnRows(pgxmock.NewRows(memberCols).
			AddRow(memberID, team.ID, userID, nil, models.RoleMember, 2, models.MemberStatusJoined, now))
	mock.ExpectExec(`UPDATE teams SET current_members_count`).
		WithArgs(2, models.TeamStatusComplete, now, team.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE team_invitations SET uses`).
		WithArgs(1, models.InvitationStatusPending, invID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	res, err := svc.JoinByCode(ctx, "  gzl7kq2m ", userID, now)

	require.NoError(t, err)
	assert.Equal(t, memberID, res.Member.ID)
	assert.Equal(t, 2, res.Team.CurrentMembersCount)
	assert.Equal(t, models.TeamStatusComplete, res.Team.Status)
	require.Len(t, pub.events, 2)
	assert.Equal(t, EventMemberJoined, pub.events[0].Type)
	assert.Equal(t, EventTeamUpdated, pub.events[1].Type)
	assert.Equal(t, team.ID, pub.events[0].Topic)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_JoinByCode_LastUseMarksInvitationUsed(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)
	team.CurrentMembersCount = 3
	userID, invID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM team_invitations`).
		WithArgs("GZL7KQ2M", models.InvitationStatusPending, now).
		WillReturnRows(pgxmock.NewRows(invitationCols).
			AddRow(invID, team.ID, "GZL7KQ2M", models.InvitationStatusPending, 3, 2, now.Add(time.Hour), now))
	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1 FOR UPDATE`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\), 0\) \+ 1 FROM team_members`).
		WithArgs(team.ID).
		WillReturnRows(pgxmock.NewRows([]string{"position"}).AddRow(4))
	mock.ExpectQuery(`INSERT INTO team_members`).
		WithArgs(team.ID, userID, models.RoleMember, 4, models.MemberStatusJoined, now).
		WillReturnRows(pgxmock.NewRows(memberCols).
			AddRow(uuid.New(), team.ID, userID, nil, models.RoleMember, 4, models.MemberStatusJoined, now))
	mock.ExpectExec(`UPDATE teams SET current_members_count`).
		WithArgs(4, models.TeamStatusComplete, now, team.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE team_invitations SET uses`).
		WithArgs(3, models.InvitationStatusUsed, invID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	_, err := svc.JoinByCode(context.Background(), "GZL7KQ2M", userID, now)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_JoinByCode_TeamFull(t *testing.T) {
	svc, mock, pub := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)
	team.CurrentMembersCount = team.MaxMembers

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM team_invitations`).
		WithArgs("GZL7KQ2M", models.InvitationStatusPending, now).
		WillReturnRows(pgxmock.NewRows(invitationCols).
			AddRow(uuid.New(), team.ID, "GZL7KQ2M", models.InvitationStatusPending, 3, 1, now.Add(time.Hour), now))
	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1 FOR UPDATE`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectRollback()

	_, err := svc.JoinByCode(context.Background(), "GZL7KQ2M", uuid.New(), now)

	assert.ErrorIs(t, err, ErrTeamFull)
	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_JoinByCode_AlreadyMember(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM team_invitations`).
		WithArgs("GZL7KQ2M", models.InvitationStatusPending, now).
		WillReturnRows(pgxmock.NewRows(invitationCols).
			AddRow(uuid.New(), team.ID, "GZL7KQ2M", models.InvitationStatusPending, 3, 0, now.Add(time.Hour), now))
	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1 FOR UPDATE`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\), 0\) \+ 1 FROM team_members`).
		WithArgs(team.ID).
		WillReturnRows(pgxmock.NewRows([]string{"position"}).AddRow(2))
	mock.ExpectQuery(`INSERT INTO team_members`).
		WithArgs(team.ID, userID, models.RoleMember, 2, models.MemberStatusJoined, now).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.JoinByCode(context.Background(), "GZL7KQ2M", userID, now)

	assert.ErrorIs(t, err, ErrAlreadyTeamMember)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_JoinByCode_EmptyCode(t *testing.T) {
	svc, mock, _ := setupTeamService(t)

	_, err := svc.JoinByCode(context.Background(), "   ", uuid.New(), time.Now())

	assert.ErrorIs(t, err, ErrInvitationCodeRequired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_JoinByCode_UnknownCode(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM team_invitations`).
		WithArgs("NOPE2345", models.InvitationStatusPending, now).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.JoinByCode(context.Background(), "nope2345", uuid.New(), now)

	assert.ErrorIs(t, err, ErrInvitationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_Dashboard(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)
	memberUserID := uuid.New()
	captainRowID, memberRowID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectQuery(`SELECT .+ FROM team_members tm`).
		WithArgs(team.ID, models.MemberStatusRemoved).
		WillReturnRows(pgxmock.NewRows([]string{"id", "team_id", "user_id", "entry_id", "role", "position", "status", "joined_at",
			"u_id", "email", "name", "avatar_url"}).
			AddRow(captainRowID, team.ID, team.CaptainUserID, nil, models.RoleCaptain, 1, models.MemberStatusJoined, now,
				team.CaptainUserID, team.CaptainEmail, "Camille", nil).
			AddRow(memberRowID, team.ID, memberUserID, nil, models.RoleMember, 2, models.MemberStatusJoined, now,
				memberUserID, "member@example.com", "Sam", nil))
	mock.ExpectQuery(`SELECT .+ FROM team_invitations`).
		WithArgs(team.ID, models.InvitationStatusPending, now).
		WillReturnRows(pgxmock.NewRows(invitationCols).
			AddRow(uuid.New(), team.ID, "GZL7KQ2M", models.InvitationStatusPending, 3, 1, now.Add(time.Hour), now))

	dash, err := svc.Dashboard(context.Background(), team.ID, team.CaptainUserID, now)

	require.NoError(t, err)
	assert.True(t, dash.IsCaptain)
	assert.True(t, dash.CanModify)
	require.Len(t, dash.Members, 2)
	assert.False(t, dash.Members[0].CanRemove)
	assert.True(t, dash.Members[1].CanRemove)
	assert.Len(t, dash.Invitations, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_Dashboard_AfterDeadline(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)
	later := team.CanModifyUntil.Add(time.Hour)
	memberUserID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectQuery(`SELECT .+ FROM team_members tm`).
		WithArgs(team.ID, models.MemberStatusRemoved).
		WillReturnRows(pgxmock.NewRows([]string{"id", "team_id", "user_id", "entry_id", "role", "position", "status", "joined_at",
			"u_id", "email", "name", "avatar_url"}).
			AddRow(uuid.New(), team.ID, memberUserID, nil, models.RoleMember, 2, models.MemberStatusJoined, now,
				memberUserID, "member@example.com", "Sam", nil))

	dash, err := svc.Dashboard(context.Background(), team.ID, memberUserID, later)

	require.NoError(t, err)
	assert.False(t, dash.IsCaptain)
	assert.False(t, dash.CanModify)
	assert.False(t, dash.Members[0].CanRemove)
	assert.Empty(t, dash.Invitations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_Dashboard_NotMember(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)

	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectQuery(`SELECT .+ FROM team_members tm`).
		WithArgs(team.ID, models.MemberStatusRemoved).
		WillReturnRows(pgxmock.NewRows([]string{"id", "team_id", "user_id", "entry_id", "role", "position", "status", "joined_at",
			"u_id", "email", "name", "avatar_url"}))

	_, err := svc.Dashboard(context.Background(), team.ID, uuid.New(), now)

	assert.ErrorIs(t, err, ErrNotTeamMember)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_RemoveMember(t *testing.T) {
	svc, mock, pub := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)
	team.CurrentMembersCount = 2
	memberID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1 FOR UPDATE`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectQuery(`SELECT .+ FROM team_members WHERE id`).
		WithArgs(memberID, team.ID, models.MemberStatusRemoved).
		WillReturnRows(pgxmock.NewRows(memberCols).
			AddRow(memberID, team.ID, uuid.New(), nil, models.RoleMember, 2, models.MemberStatusJoined, now))
	mock.ExpectExec(`UPDATE team_members SET status`).
		WithArgs(models.MemberStatusRemoved, memberID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE teams SET current_members_count`).
		WithArgs(1, models.TeamStatusIncomplete, now, team.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE team_invitations SET uses = GREATEST\(uses - 1, 0\)`).
		WithArgs(models.InvitationStatusPending, team.ID, models.InvitationStatusUsed, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := svc.RemoveMember(context.Background(), team.ID, memberID, team.CaptainUserID, now)

	require.NoError(t, err)
	require.Len(t, pub.events, 2)
	assert.Equal(t, EventMemberRemoved, pub.events[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_RemoveMember_NotCaptain(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1 FOR UPDATE`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectRollback()

	err := svc.RemoveMember(context.Background(), team.ID, uuid.New(), uuid.New(), now)

	assert.ErrorIs(t, err, ErrNotTeamCaptain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_RemoveMember_AfterDeadline(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1 FOR UPDATE`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectRollback()

	err := svc.RemoveMember(context.Background(), team.ID, uuid.New(), team.CaptainUserID, team.CanModifyUntil.Add(time.Minute))

	assert.ErrorIs(t, err, ErrModificationClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_RemoveMember_Captain(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)
	captainRowID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1 FOR UPDATE`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectQuery(`SELECT .+ FROM team_members WHERE id`).
		WithArgs(captainRowID, team.ID, models.MemberStatusRemoved).
		WillReturnRows(pgxmock.NewRows(memberCols).
			AddRow(captainRowID, team.ID, team.CaptainUserID, nil, models.RoleCaptain, 1, models.MemberStatusJoined, now))
	mock.ExpectRollback()

	err := svc.RemoveMember(context.Background(), team.ID, captainRowID, team.CaptainUserID, now)

	assert.ErrorIs(t, err, ErrCannotRemoveCaptain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_JoinByCode_PositionSkipsRemovedMembers(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)
	// captain@1, a removed member @2, an active member @3
	team.CurrentMembersCount = 2
	team.Status = models.TeamStatusComplete
	userID, invID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM team_invitations`).
		WithArgs("GZL7KQ2M", models.InvitationStatusPending, now).
		WillReturnRows(pgxmock.NewRows(invitationCols).
			AddRow(invID, team.ID, "GZL7KQ2M", models.InvitationStatusPending, 3, 1, now.Add(time.Hour), now))
	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1 FOR UPDATE`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\), 0\) \+ 1 FROM team_members`).
		WithArgs(team.ID).
		WillReturnRows(pgxmock.NewRows([]string{"position"}).AddRow(4))
	mock.ExpectQuery(`INSERT INTO team_members`).
		WithArgs(team.ID, userID, models.RoleMember, 4, models.MemberStatusJoined, now).
		WillReturnRows(pgxmock.NewRows(memberCols).
			AddRow(uuid.New(), team.ID, userID, nil, models.RoleMember, 4, models.MemberStatusJoined, now))
	mock.ExpectExec(`UPDATE teams SET current_members_count`).
		WithArgs(3, models.TeamStatusComplete, now, team.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE team_invitations SET uses`).
		WithArgs(2, models.InvitationStatusPending, invID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	res, err := svc.JoinByCode(context.Background(), "GZL7KQ2M", userID, now)

	require.NoError(t, err)
	assert.Equal(t, 4, res.Member.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamService_JoinByCode_ClosedTeam(t *testing.T) {
	for _, status := range []string{models.TeamStatusCancelled, models.TeamStatusValidated} {
		t.Run(status, func(t *testing.T) {
			svc, mock, pub := setupTeamService(t)
			now := time.Now()
			team := sampleTeam(now)
			team.Status = status

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT .+ FROM team_invitations`).
				WithArgs("GZL7KQ2M", models.InvitationStatusPending, now).
				WillReturnRows(pgxmock.NewRows(invitationCols).
					AddRow(uuid.New(), team.ID, "GZL7KQ2M", models.InvitationStatusPending, 3, 0, now.Add(time.Hour), now))
			mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1 FOR UPDATE`).
				WithArgs(team.ID).
				WillReturnRows(teamRow(team))
			mock.ExpectRollback()

			_, err := svc.JoinByCode(context.Background(), "GZL7KQ2M", uuid.New(), now)

			assert.ErrorIs(t, err, ErrTeamClosed)
			assert.Empty(t, pub.events)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTeamService_RemoveMember_ClosedTeam(t *testing.T) {
	svc, mock, _ := setupTeamService(t)
	now := time.Now()
	team := sampleTeam(now)
	team.Status = models.TeamStatusCancelled

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1 FOR UPDATE`).
		WithArgs(team.ID).
		WillReturnRows(teamRow(team))
	mock.ExpectRollback()

	err := svc.RemoveMember(context.Background(), team.ID, uuid.New(), team.CaptainUserID, now)

	assert.ErrorIs(t, err, ErrTeamClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
