package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/permissions"
	"guild-chat-service/internal/repositories"
	"guild-chat-service/internal/topics"
)

const (
	inviteCodeLength   = 8
	inviteCodeAttempts = 10
)

// CommunityInput carries fields for community creation.
type CommunityInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`
}

// CommunityService manages communities, channels, invites and members.
type CommunityService struct {
	store     Store
	perms     *permissions.Evaluator
	bus       Broadcaster
	inviteTTL time.Duration
	now       func() time.Time
	newCode   func() string
}

func NewCommunityService(store Store, perms *permissions.Evaluator, bus Broadcaster, inviteTTL time.Duration) *CommunityService {
	return &CommunityService{
		store:     store,
		perms:     perms,
		bus:       bus,
		inviteTTL: inviteTTL,
		now:       time.Now,
		newCode:   newInviteCode,
	}
}

func newInviteCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:inviteCodeLength]
}

func (s *CommunityService) community(ctx context.Context, communityID int) (models.Community, error) {
	c, err := s.store.Communities.Get(ctx, communityID)
	if err != nil {
		return models.Community{}, missing(err, repositories.ErrCommunityNotFound, "community", communityID)
	}
	return c, nil
}

func (s *CommunityService) requireMember(ctx context.Context, communityID, userID int) error {
	ok, err := s.store.Communities.IsMember(ctx, communityID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("not a member of this community")
	}
	return nil
}

// Create makes the creator a member holding a fresh Owner role.
func (s *CommunityService) Create(ctx context.Context, ownerID int, in CommunityInput) (models.CommunityDetail, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.CommunityDetail{}, apperr.Invalid("community name is required")
	}

	var created models.Community
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.store.Communities.Create(ctx, models.Community{
			Name:        name,
			Description: in.Description,
			IconURL:     in.IconURL,
			OwnerID:     ownerID,
		})
		if errors.Is(err, repositories.ErrDuplicate) {
			return apperr.Conflict("community name %q is already taken", name)
		}
		if err != nil {
			return err
		}
		if _, err := s.store.Communities.AddMember(ctx, created.ID, ownerID); err != nil {
			return err
		}
		owner, err := s.store.Roles.Create(ctx, models.Role{
			CommunityID: created.ID,
			Name:        models.OwnerRoleName,
			ColorHex:    models.OwnerRoleColor,
			Permissions: models.CapabilityList([]models.Capability{models.CapAdministrator}),
			IsOwner:     true,
		})
		if err != nil {
			return err
		}
		_, err = s.store.Roles.Assign(ctx, created.ID, owner.ID, ownerID)
		return err
	})
	if err != nil {
		return models.CommunityDetail{}, err
	}
	return models.CommunityDetail{Community: created, Channels: []models.Channel{}, MemberCount: 1}, nil
}

// ListMine returns the communities the user belongs to.
func (s *CommunityService) ListMine(ctx context.Context, userID int) ([]models.Community, error) {
	return s.store.Communities.ListForUser(ctx, userID)
}

// Get returns a community with its channels to a member.
func (s *CommunityService) Get(ctx context.Context, communityID, userID int) (models.CommunityDetail, error) {
	c, err := s.community(ctx, communityID)
	if err != nil {
		return models.CommunityDetail{}, err
	}
	if err := s.requireMember(ctx, communityID, userID); err != nil {
		return models.CommunityDetail{}, err
	}
	return s.detail(ctx, c)
}

func (s *CommunityService) detail(ctx context.Context, c models.Community) (models.CommunityDetail, error) {
	channels, err := s.store.Channels.ListByCommunity(ctx, c.ID)
	if err != nil {
		return models.CommunityDetail{}, err
	}
	count, err := s.store.Communities.CountMembers(ctx, c.ID)
	if err != nil {
		return models.CommunityDetail{}, err
	}
	return models.CommunityDetail{Community: c, Channels: channels, MemberCount: count}, nil
}

// Update changes name, description or icon. Requires MANAGE_SERVER.
func (s *CommunityService) Update(ctx context.Context, communityID, userID int, in models.CommunityUpdate) (models.Community, error) {
	var updated models.Community
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.community(ctx, communityID)
		if err != nil {
			return err
		}
		return s.perms.Guard(ctx, communityID, userID, models.CapManageServer, func(ctx context.Context) error {
			if in.Name != nil {
				name := strings.TrimSpace(*in.Name)
				if name == "" {
					return apperr.Invalid("community name is required")
				}
				c.Name = name
			}
			if in.Description != nil {
				c.Description = *in.Description
			}
			if in.IconURL != nil {
				c.IconURL = *in.IconURL
			}
			updated, err = s.store.Communities.Update(ctx, c)
			if errors.Is(err, repositories.ErrDuplicate) {
				return apperr.Conflict("community name %q is already taken", c.Name)
			}
			return err
		})
	})
	return updated, err
}

// Delete removes the community and everything in it. Requires ADMINISTRATOR.
// Live subscriptions to its channels are dropped after commit.
func (s *CommunityService) Delete(ctx context.Context, communityID, userID int) error {
	var channels []models.Channel
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.community(ctx, communityID); err != nil {
			return err
		}
		return s.perms.Guard(ctx, communityID, userID, models.CapAdministrator, func(ctx context.Context) error {
			var err error
			if channels, err = s.store.Channels.ListByCommunity(ctx, communityID); err != nil {
				return err
			}
			return missing(s.store.Communities.Delete(ctx, communityID), repositories.ErrCommunityNotFound, "community", communityID)
		})
	})
	if err != nil {
		return err
	}
	for _, ch := range channels {
		s.bus.RevokeAll(topics.ForChannel(ch.ID).Prefix())
	}
	return nil
}

// CreateChannel appends a channel. Requires MANAGE_CHANNELS.
func (s *CommunityService) CreateChannel(ctx context.Context, communityID, userID int, name, iconURL string) (models.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Channel{}, apperr.Invalid("channel name is required")
	}
	var ch models.Channel
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.community(ctx, communityID); err != nil {
			return err
		}
		return s.perms.Guard(ctx, communityID, userID, models.CapManageChannels, func(ctx context.Context) error {
			var err error
			ch, err = s.store.Channels.Create(ctx, communityID, name, iconURL)
			return err
		})
	})
	return ch, err
}

func (s *CommunityService) channelIn(ctx context.Context, communityID, channelID int) (models.Channel, error) {
	ch, err := s.store.Channels.Get(ctx, channelID)
	if err != nil {
		return models.Channel{}, missing(err, repositories.ErrChannelNotFound, "channel", channelID)
	}
	if ch.CommunityID != communityID {
		return models.Channel{}, apperr.NotFound("channel", channelID)
	}
	return ch, nil
}

// RenameChannel requires MANAGE_CHANNELS.
func (s *CommunityService) RenameChannel(ctx context.Context, communityID, channelID, userID int, name string) (models.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Channel{}, apperr.Invalid("channel name is required")
	}
	var ch models.Channel
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.channelIn(ctx, communityID, channelID); err != nil {
			return err
		}
		return s.perms.Guard(ctx, communityID, userID, models.CapManageChannels, func(ctx context.Context) error {
			var err error
			ch, err = s.store.Channels.Rename(ctx, channelID, name)
			return missing(err, repositories.ErrChannelNotFound, "channel", channelID)
		})
	})
	return ch, err
}

// DeleteChannel removes a channel and its messages. Requires MANAGE_CHANNELS.
func (s *CommunityService) DeleteChannel(ctx context.Context, communityID, channelID, userID int) error {
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.channelIn(ctx, communityID, channelID); err != nil {
			return err
		}
		return s.perms.Guard(ctx, communityID, userID, models.CapManageChannels, func(ctx context.Context) error {
			return missing(s.store.Channels.Delete(ctx, channelID), repositories.ErrChannelNotFound, "channel", channelID)
		})
	})
	if err != nil {
		return err
	}
	s.bus.RevokeAll(topics.ForChannel(channelID).Prefix())
	return nil
}

// CreateInvite issues an 8-character code. Requires CREATE_INVITE.
func (s *CommunityService) CreateInvite(ctx context.Context, communityID, userID int) (models.Invite, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		var inv models.Invite
		err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := s.community(ctx, communityID); err != nil {
				return err
			}
			return s.perms.Guard(ctx, communityID, userID, models.CapCreateInvite, func(ctx context.Context) error {
				var err error
				inv, err = s.store.Invites.Create(ctx, models.Invite{
					Code:        s.newCode(),
					CommunityID: communityID,
					CreatedBy:   userID,
					ExpiresAt:   s.now().Add(s.inviteTTL),
				})
				return err
			})
		})
		if errors.Is(err, repositories.ErrDuplicate) {
			continue
		}
		return inv, err
	}
	return models.Invite{}, errors.New("failed to generate a unique invite code")
}

// AcceptInvite joins the user to the invite's community. Joining twice is a
// no-op.
func (s *CommunityService) AcceptInvite(ctx context.Context, code string, userID int) (models.CommunityDetail, error) {
	var c models.Community
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.store.Invites.GetByCode(ctx, code)
		if err != nil {
			return missing(err, repositories.ErrInviteNotFound, "invite", code)
		}
		if inv.Expired(s.now()) {
			return apperr.Expired("invite %s has expired", code)
		}
		c, err = s.community(ctx, inv.CommunityID)
		if err != nil {
			return err
		}
		_, err = s.store.Communities.AddMember(ctx, inv.CommunityID, userID)
		return err
	})
	if err != nil {
		return models.CommunityDetail{}, err
	}
	return s.detail(ctx, c)
}

// ListMembers returns members to another member.
func (s *CommunityService) ListMembers(ctx context.Context, communityID, userID int) ([]models.Member, error) {
	if _, err := s.community(ctx, communityID); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, communityID, userID); err != nil {
		return nil, err
	}
	return s.store.Communities.ListMembers(ctx, communityID)
}

// Kick removes a member and their role assignments. Requires KICK_MEMBERS.
// The last holder of the Owner role cannot be kicked. The kicked user loses
// every channel subscription of the community.
func (s *CommunityService) Kick(ctx context.Context, communityID, targetID, actorID int) error {
	var channels []models.Channel
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.community(ctx, communityID); err != nil {
			return err
		}
		return s.perms.Guard(ctx, communityID, actorID, models.CapKickMembers, func(ctx context.Context) error {
			member, err := s.store.Communities.IsMember(ctx, communityID, targetID)
			if err != nil {
				return err
			}
			if !member {
				return apperr.NotFound("member", targetID)
			}
			if err := s.protectLastOwner(ctx, communityID, targetID); err != nil {
				return err
			}
			if _, err = s.store.Communities.RemoveMember(ctx, communityID, targetID); err != nil {
				return err
			}
			channels, err = s.store.Channels.ListByCommunity(ctx, communityID)
			return err
		})
	})
	if err != nil {
		return err
	}
	revokeChannels(s.bus, targetID, channels)
	notify(s.bus, targetID, models.NotifyCommunityMemberKicked, map[string]int{"community_id": communityID})
	return nil
}

func (s *CommunityService) protectLastOwner(ctx context.Context, communityID, userID int) error {
	holds, err := s.store.Roles.HoldsOwner(ctx, communityID, userID)
	if err != nil || !holds {
		return err
	}
	roles, err := s.store.Roles.ListUserRoles(ctx, communityID, userID)
	if err != nil {
		return err
	}
	for _, r := range roles {
		if !r.IsOwner {
			continue
		}
		n, err := s.store.Roles.CountHolders(ctx, r.ID)
		if err != nil {
			return err
		}
		if n <= 1 {
			return apperr.Forbidden("the last owner cannot be removed")
		}
	}
	return nil
}
