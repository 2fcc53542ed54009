package requests

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindApartment       Kind = "APT"
	KindApartmentInvite Kind = "APT_INVITE"
	KindMatch           Kind = "MATCH"
	KindGroup           Kind = "GROUP"
	KindAll             Kind = "ALL"
)

// Status is the shared status every source vocabulary is normalized onto.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusCancelled   Status = "CANCELLED"
	StatusNotRelevant Status = "NOT_RELEVANT"
	StatusAll         Status = "ALL"
)

type Tab string

const (
	TabIncoming Tab = "incoming"
	TabSent     Tab = "sent"
)

type ApartmentRequestType string

const (
	ApartmentRequestJoin   ApartmentRequestType = "JOIN_APT"
	ApartmentRequestInvite ApartmentRequestType = "INVITE_APT"
)

type ApartmentRequest struct {
	ID          string               `gorm:"type:uuid;primaryKey"`
	SenderID    string               `gorm:"type:uuid;not null;index"`
	RecipientID string               `gorm:"type:uuid;not null;index"`
	ApartmentID string               `gorm:"type:uuid;not null"`
	Type        ApartmentRequestType `gorm:"type:varchar(16);not null"`
	Status      string               `gorm:"not null"`
	Metadata    datatypes.JSON
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (ApartmentRequest) TableName() string {
	return "apartments_request"
}

// Kind reports the unified kind of the request.
func (r ApartmentRequest) Kind() Kind {
	if r.Type == ApartmentRequestInvite {
		return KindApartmentInvite
	}
	return KindApartment
}

// UserToAdd is the user who becomes a partner when the request is approved.
func (r ApartmentRequest) UserToAdd() string {
	if r.Type == ApartmentRequestInvite {
		return r.RecipientID
	}
	return r.SenderID
}

type Match struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	SenderID        string    `gorm:"type:uuid;not null;index"`
	ReceiverID      *string   `gorm:"type:uuid;index"`
	ReceiverGroupID *string   `gorm:"type:uuid;index"`
	Status          string    `gorm:"not null"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Match) TableName() string {
	return "matches"
}

type Apartment struct {
	ID               string         `gorm:"type:uuid;primaryKey"`
	OwnerID          string         `gorm:"type:uuid;not null"`
	PartnerIDs       pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	RoommateCapacity *int
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (Apartment) TableName() string {
	return "apartments"
}

func (a Apartment) HasPartner(userID string) bool {
	for _, id := range a.PartnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// UnifiedRequest is the one shape every request kind is shown in. Only the
// normalizer builds it.
type UnifiedRequest struct {
	ID          string
	Kind        Kind
	SenderID    string
	RecipientID string
	ApartmentID string
	Status      Status
	CreatedAt   time.Time
	Metadata    json.RawMessage
	// DisplayGroupID is set for group-targeted matches. RecipientID then holds
	// a display member and is never written back.
	DisplayGroupID string
	MergedProfile  *MergedProfile
}

type MergedProfile struct {
	GroupID string
	Members []ProfileMember
}

type ProfileMember struct {
	UserID    string
	Name      string
	AvatarURL string
}

type Inbox struct {
	Incoming []UnifiedRequest
	Sent     []UnifiedRequest
}

type Criteria struct {
	Tab    Tab
	Kind   Kind
	Status Status
}

// ApprovalResult reports an approval whose status change succeeded. Failed
// best-effort steps are collected in SideEffectErr.
type ApprovalResult struct {
	RequestID     string
	Kind          Kind
	Status        Status
	SideEffectErr error
}

func (r *ApprovalResult) Partial() bool {
	return r.SideEffectErr != nil
}

func (r *ApprovalResult) SideEffectErrors() []string {
	if r.SideEffectErr == nil {
		return []string{}
	}

	var merr *multierror.Error
	if !errors.As(r.SideEffectErr, &merr) {
		return []string{r.SideEffectErr.Error()}
	}

	result := make([]string, 0, len(merr.Errors))
	for _, err := range merr.Errors {
		result = append(result, err.Error())
	}
	return result
}
