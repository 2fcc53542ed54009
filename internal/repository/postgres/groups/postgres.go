package groups

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	groupsdomain "roommates-app-go/internal/domain/groups"
	"roommates-app-go/internal/storeerr"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetActiveGroupID(ctx context.Context, userID string) (string, bool, error) {
	var member groupsdomain.Member
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, groupsdomain.MemberStatusActive).
		Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeerr.Wrap("groups.get_active_group", err)
	}
	return member.GroupID, true, nil
}

func (r *PostgresRepository) ListActiveMembers(ctx context.Context, groupID string) ([]string, error) {
	var userIDs []string
	if err := r.db.WithContext(ctx).
		Model(&groupsdomain.Member{}).
		Where("group_id = ? AND status = ?", groupID, groupsdomain.MemberStatusActive).
		Order("joined_at asc, user_id asc").
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, storeerr.Wrap("groups.list_active_members", err)
	}
	return userIDs, nil
}

func (r *PostgresRepository) ListMembers(ctx context.Context, groupID string) ([]groupsdomain.Member, error) {
	var members []groupsdomain.Member
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("joined_at asc, user_id asc").
		Find(&members).Error; err != nil {
		return nil, storeerr.Wrap("groups.list_members", err)
	}
	return members, nil
}

func (r *PostgresRepository) GetGroup(ctx context.Context, groupID string) (*groupsdomain.Group, error) {
	var group groupsdomain.Group
	if err := r.db.WithContext(ctx).Where("id = ?", groupID).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, groupsdomain.ErrGroupNotFound
		}
		return nil, storeerr.Wrap("groups.get_group", err)
	}
	return &group, nil
}

func (r *PostgresRepository) CreateGroup(ctx context.Context, group *groupsdomain.Group) error {
	return storeerr.Wrap("groups.create_group", r.db.WithContext(ctx).Create(group).Error)
}

func (r *PostgresRepository) UpdateGroupStatus(ctx context.Context, groupID string, status groupsdomain.GroupStatus) error {
	err := r.db.WithContext(ctx).
		Model(&groupsdomain.Group{}).
		Where("id = ?", groupID).
		Update("status", status).Error
	return storeerr.Wrap("groups.update_status", err)
}

func (r *PostgresRepository) UpdateGroupName(ctx context.Context, groupID, name string) error {
	result := r.db.WithContext(ctx).
		Model(&groupsdomain.Group{}).
		Where("id = ?", groupID).
		Update("name", name)
	if result.Error != nil {
		return storeerr.Wrap("groups.update_name", result.Error)
	}
	if result.RowsAffected == 0 {
		return groupsdomain.ErrGroupNotFound
	}
	return nil
}

// InsertMembership relies on the (group_id, user_id) primary key: a repeated
// insert is dropped by ON CONFLICT DO NOTHING.
func (r *PostgresRepository) InsertMembership(ctx context.Context, member *groupsdomain.Member) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(member).Error
	if storeerr.IsUniqueViolation(err) {
		return groupsdomain.ErrMembershipConflict
	}
	return storeerr.Wrap("groups.insert_membership", err)
}

func (r *PostgresRepository) SetMembershipStatus(ctx context.Context, groupID, userID string, status groupsdomain.MemberStatus) error {
	err := r.db.WithContext(ctx).
		Model(&groupsdomain.Member{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("status", status).Error
	if storeerr.IsUniqueViolation(err) {
		return groupsdomain.ErrMembershipConflict
	}
	return storeerr.Wrap("groups.set_membership_status", err)
}

func (r *PostgresRepository) DeleteGroup(ctx context.Context, groupID string) error {
	err := r.db.WithContext(ctx).Delete(&groupsdomain.Group{}, "id = ?", groupID).Error
	return storeerr.Wrap("groups.delete_group", err)
}

func (r *PostgresRepository) DeleteMembershipsByGroup(ctx context.Context, groupID string) error {
	err := r.db.WithContext(ctx).Where("group_id = ?", groupID).Delete(&groupsdomain.Member{}).Error
	return storeerr.Wrap("groups.delete_memberships", err)
}

func (r *PostgresRepository) DeleteInvitesByGroup(ctx context.Context, groupID, keepInviteID string) error {
	query := r.db.WithContext(ctx).Where("group_id = ?", groupID)
	if keepInviteID != "" {
		query = query.Where("id <> ?", keepInviteID)
	}
	return storeerr.Wrap("groups.delete_invites", query.Delete(&groupsdomain.Invite{}).Error)
}

func (r *PostgresRepository) GetInvite(ctx context.Context, inviteID string) (*groupsdomain.Invite, error) {
	var invite groupsdomain.Invite
	if err := r.db.WithContext(ctx).Where("id = ?", inviteID).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, groupsdomain.ErrInviteNotFound
		}
		return nil, storeerr.Wrap("groups.get_invite", err)
	}
	return &invite, nil
}

func (r *PostgresRepository) CreateInvite(ctx context.Context, invite *groupsdomain.Invite) error {
	err := r.db.WithContext(ctx).Create(invite).Error
	if storeerr.IsUniqueViolation(err) {
		return groupsdomain.ErrDuplicateInvite
	}
	return storeerr.Wrap("groups.create_invite", err)
}

func (r *PostgresRepository) FindPendingInvite(ctx context.Context, groupID, inviteeID string) (*groupsdomain.Invite, error) {
	var invite groupsdomain.Invite
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND invitee_id = ? AND status = ?", groupID, inviteeID, groupsdomain.InviteStatusPending).
		Take(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeerr.Wrap("groups.find_pending_invite", err)
	}
	return &invite, nil
}

func (r *PostgresRepository) CountPendingInvites(ctx context.Context, groupID, excludeInviteID string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&groupsdomain.Invite{}).
		Where("group_id = ? AND status = ?", groupID, groupsdomain.InviteStatusPending)
	if excludeInviteID != "" {
		query = query.Where("id <> ?", excludeInviteID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, storeerr.Wrap("groups.count_pending_invites", err)
	}
	return count, nil
}

// ResolveInvite only moves PENDING rows, so concurrent resolutions cannot
// overwrite each other.
func (r *PostgresRepository) ResolveInvite(ctx context.Context, inviteID string, status groupsdomain.InviteStatus, respondedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&groupsdomain.Invite{}).
		Where("id = ? AND status = ?", inviteID, groupsdomain.InviteStatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"responded_at": respondedAt,
		})
	if result.Error != nil {
		return false, storeerr.Wrap("groups.resolve_invite", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *PostgresRepository) ListInvitesByInvitee(ctx context.Context, inviteeID string) ([]groupsdomain.Invite, error) {
	return r.listInvites(ctx, "invitee_id = ?", inviteeID)
}

func (r *PostgresRepository) ListInvitesByInviter(ctx context.Context, inviterID string) ([]groupsdomain.Invite, error) {
	return r.listInvites(ctx, "inviter_id = ?", inviterID)
}

func (r *PostgresRepository) ListTransientGroups(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	var groupIDs []string
	err := r.db.WithContext(ctx).Raw(`
		SELECT g.id
		FROM profile_groups g
		WHERE g.created_at < ?
		  AND (
		    SELECT COUNT(*) FROM profile_group_members m
		    WHERE m.group_id = g.id AND m.status = ?
		  ) < 2
		  AND NOT EXISTS (
		    SELECT 1 FROM profile_group_invites i
		    WHERE i.group_id = g.id AND i.status = ?
		  )
		ORDER BY g.created_at ASC
		LIMIT ?`,
		createdBefore, groupsdomain.MemberStatusActive, groupsdomain.InviteStatusPending, limit,
	).Scan(&groupIDs).Error
	if err != nil {
		return nil, storeerr.Wrap("groups.list_transient", err)
	}
	return groupIDs, nil
}

func (r *PostgresRepository) listInvites(ctx context.Context, where string, userID string) ([]groupsdomain.Invite, error) {
	var invites []groupsdomain.Invite
	if err := r.db.WithContext(ctx).
		Where(where, userID).
		Order("created_at desc, id asc").
		Find(&invites).Error; err != nil {
		return nil, storeerr.Wrap("groups.list_invites", err)
	}
	return invites, nil
}
