package models

import (
	"time"

	"github.com/lib/pq"
)

// Capability is a named guarded action within a community.
type Capability string

const (
	CapAdministrator  Capability = "ADMINISTRATOR"
	CapManageServer   Capability = "MANAGE_SERVER"
	CapManageChannels Capability = "MANAGE_CHANNELS"
	CapManageRoles    Capability = "MANAGE_ROLES"
	CapManageMessages Capability = "MANAGE_MESSAGES"
	CapCreateInvite   Capability = "CREATE_INVITE"
	CapKickMembers    Capability = "KICK_MEMBERS"
	CapSendMessages   Capability = "SEND_MESSAGES"
)

// OwnerRoleName is the reserved name of the immutable owner role.
const OwnerRoleName = "Owner"

// OwnerRoleColor is the display color given to a new owner role.
const OwnerRoleColor = "#FF0000"

// AllCapabilities lists every known capability in display order.
func AllCapabilities() []Capability {
	return []Capability{
		CapAdministrator,
		CapManageServer,
		CapManageChannels,
		CapManageRoles,
		CapManageMessages,
		CapCreateInvite,
		CapKickMembers,
		CapSendMessages,
	}
}

// ValidCapability reports whether c is a known capability.
func ValidCapability(c Capability) bool {
	for _, known := range AllCapabilities() {
		if known == c {
			return true
		}
	}
	return false
}

// Role belongs to exactly one community.
type Role struct {
	ID          int            `db:"id" json:"id"`
	CommunityID int            `db:"community_id" json:"community_id"`
	Name        string         `db:"name" json:"name"`
	ColorHex    string         `db:"color_hex" json:"color_hex"`
	Permissions pq.StringArray `db:"permissions" json:"permissions,omitempty"`
	IsOwner     bool           `db:"is_owner" json:"is_owner"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// Has reports whether the role lists the capability literally.
func (r Role) Has(c Capability) bool {
	for _, p := range r.Permissions {
		if Capability(p) == c {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role carries the administrator flag.
func (r Role) IsAdmin() bool {
	return r.IsOwner || r.Has(CapAdministrator)
}

// CapabilityList converts capabilities into the stored representation.
func CapabilityList(caps []Capability) pq.StringArray {
	seen := make(map[Capability]struct{}, len(caps))
	out := make(pq.StringArray, 0, len(caps))
	for _, c := range caps {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, string(c))
	}
	return out
}

// RoleInput carries fields for role creation.
type RoleInput struct {
	Name        string       `json:"name"`
	ColorHex    string       `json:"color_hex"`
	Permissions []Capability `json:"permissions"`
}

// RoleUpdate carries optional fields for a role update.
type RoleUpdate struct {
	Name        *string       `json:"name"`
	ColorHex    *string       `json:"color_hex"`
	Permissions *[]Capability `json:"permissions"`
}
