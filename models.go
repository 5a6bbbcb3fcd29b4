package crosspost

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is a local account identified by a unique email.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ConnectedAccount is one platform connection for a user. At most one row
// exists per (user, platform); reconnecting replaces it wholesale.
type ConnectedAccount struct {
	bun.BaseModel  `bun:"table:connected_accounts,alias:ca"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID         uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Platform       Platform   `bun:"platform,notnull" json:"platform,omitempty"`
	AccessToken    string     `bun:"access_token" json:"-"`
	RefreshToken   string     `bun:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time `bun:"token_expires_at,nullzero" json:"token_expires_at,omitempty"`
	PlatformUserID string     `bun:"platform_user_id" json:"platform_user_id,omitempty"`
	Handle         string     `bun:"handle" json:"handle,omitempty"`
	AppPassword    string     `bun:"app_password" json:"-"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ConnectedAccountInfo is the outward-facing view of a connection. It carries
// identity and metadata only; credential fields have no representation here.
type ConnectedAccountInfo struct {
	ID             uuid.UUID  `json:"id"`
	Platform       Platform   `json:"platform"`
	PlatformUserID string     `json:"platform_user_id,omitempty"`
	Handle         string     `json:"handle,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// OAuthState is an ephemeral single-use token correlating an OAuth callback
// with the user who started the flow. One live row per user.
type OAuthState struct {
	bun.BaseModel `bun:"table:oauth_states,alias:oas"`
	State         string     `bun:"state,pk" json:"-"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
