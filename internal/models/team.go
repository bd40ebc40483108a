package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TeamStatusPending    = "pending"
	TeamStatusIncomplete = "incomplete"
	TeamStatusComplete   = "complete"
	TeamStatusValidated  = "validated"
	TeamStatusCancelled  = "cancelled"
)

const (
	PaymentModeTeam       = "team"
	PaymentModeIndividual = "individual"
)

const (
	RoleCaptain = "captain"
	RoleMember  = "member"
)

const (
	MemberStatusJoined            = "joined"
	MemberStatusDocumentsPending  = "documents_pending"
	MemberStatusDocumentsComplete = "documents_complete"
	MemberStatusValidated         = "validated"
	MemberStatusRemoved           = "removed"
)

const (
	InvitationStatusPending = "pending"
	InvitationStatusUsed    = "used"
	InvitationStatusExpired = "expired"
)

type Team struct {
	ID                  uuid.UUID `json:"id"`
	RaceID              uuid.UUID `json:"race_id"`
	Name                string    `json:"name"`
	TeamType            string    `json:"team_type"`
	CaptainUserID       uuid.UUID `json:"captain_user_id"`
	CaptainEmail        string    `json:"captain_email"`
	CaptainPhone        string    `json:"captain_phone"`
	Status              string    `json:"status"`
	MinMembers          int       `json:"min_members"`
	MaxMembers          int       `json:"max_members"`
	CurrentMembersCount int       `json:"current_members_count"`
	PaymentMode         string    `json:"payment_mode"`
	CanModifyUntil      time.Time `json:"can_modify_until"`
	BibNumbers          []int32   `json:"bib_numbers"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type TeamMember struct {
	ID       uuid.UUID  `json:"id"`
	TeamID   uuid.UUID  `json:"team_id"`
	UserID   uuid.UUID  `json:"user_id"`
	EntryID  *uuid.UUID `json:"entry_id,omitempty"`
	Role     string     `json:"role"`
	Position int        `json:"position"`
	Status   string     `json:"status"`
	JoinedAt time.Time  `json:"joined_at"`
	User     *User      `json:"user,omitempty"`
}

type TeamInvitation struct {
	ID             uuid.UUID `json:"id"`
	TeamID         uuid.UUID `json:"team_id"`
	InvitationCode string    `json:"invitation_code"`
	Status         string    `json:"status"`
	MaxUses        int       `json:"max_uses"`
	Uses           int       `json:"uses"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}
