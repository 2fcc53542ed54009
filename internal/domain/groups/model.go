package groups

import "time"

// MaxGroupMembers bounds the ACTIVE members of one shared profile.
const MaxGroupMembers = 4

const maxGroupNameLength = 80

type GroupStatus string

const (
	GroupStatusPending GroupStatus = "PENDING"
	GroupStatusActive  GroupStatus = "ACTIVE"
)

type MemberStatus string

const (
	MemberStatusActive MemberStatus = "ACTIVE"
	MemberStatusLeft   MemberStatus = "LEFT"
)

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "PENDING"
	InviteStatusAccepted InviteStatus = "ACCEPTED"
	InviteStatusDeclined InviteStatus = "DECLINED"
)

type Group struct {
	ID        string      `gorm:"type:uuid;primaryKey"`
	CreatedBy string      `gorm:"type:uuid;not null"`
	Name      string      `gorm:"not null;default:''"`
	Status    GroupStatus `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time   `gorm:"autoCreateTime"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime"`
}

func (Group) TableName() string {
	return "profile_groups"
}

type Member struct {
	GroupID   string       `gorm:"type:uuid;primaryKey"`
	UserID    string       `gorm:"type:uuid;primaryKey"`
	Status    MemberStatus `gorm:"type:varchar(16);not null"`
	JoinedAt  time.Time    `gorm:"autoCreateTime"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime"`
}

func (Member) TableName() string {
	return "profile_group_members"
}

type Invite struct {
	ID          string       `gorm:"type:uuid;primaryKey"`
	GroupID     string       `gorm:"type:uuid;not null;index"`
	InviterID   string       `gorm:"type:uuid;not null;index"`
	InviteeID   string       `gorm:"type:uuid;not null;index"`
	Status      InviteStatus `gorm:"type:varchar(16);not null"`
	CreatedAt   time.Time    `gorm:"autoCreateTime"`
	RespondedAt *time.Time
}

func (Invite) TableName() string {
	return "profile_group_invites"
}

type GroupWithMembers struct {
	Group   Group
	Members []string
}

// Snapshot is a read-only view of a shared profile used for display.
// An empty GroupID means the user has no shared profile.
type Snapshot struct {
	GroupID string
	Members []string
}

type Scenario string

const (
	ScenarioCreated             Scenario = "created"
	ScenarioJoinedApproverGroup Scenario = "joined_approver_group"
	ScenarioJoinedInviterGroup  Scenario = "joined_inviter_group"
	ScenarioMergedGroups        Scenario = "merged_groups"
	ScenarioAlreadyMerged       Scenario = "already_merged"
	ScenarioAlreadyAccepted     Scenario = "already_accepted"
)

type MergeResult struct {
	InviteID string
	GroupID  string
	Scenario Scenario
	Members  []string
}

type LinkInput struct {
	InviterID  string
	ApproverID string
	OtherID    string
}

type LinkResult struct {
	GroupID string
	Changed bool
}

type InviteLists struct {
	Received []Invite
	Sent     []Invite
}
