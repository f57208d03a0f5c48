package model

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Status       string     `json:"status" db:"status"`
	Plan         string     `json:"plan" db:"plan"`
	MessageLimit int        `json:"message_limit" db:"message_limit"`
	MessagesUsed int        `json:"messages_used" db:"messages_used"`
	QuotaResetAt *time.Time `json:"quota_reset_at" db:"quota_reset_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`

	WhatsAppConfig *WhatsAppConfig `json:"whatsapp_config,omitempty" db:"-"`
}

// WhatsAppConfig holds the provider credential set for one account.
type WhatsAppConfig struct {
	AccountID          uuid.UUID `json:"-" db:"account_id"`
	BusinessAccountID  string    `json:"business_account_id" db:"business_account_id"`
	AccessToken        string    `json:"access_token" db:"access_token"`
	PhoneNumberID      string    `json:"phone_number_id" db:"phone_number_id"`
	WebhookVerifyToken string    `json:"webhook_verify_token" db:"webhook_verify_token"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Configured reports whether the credential set is complete enough to send.
func (c *WhatsAppConfig) Configured() bool {
	return c != nil && c.AccessToken != "" && c.PhoneNumberID != "" && c.BusinessAccountID != ""
}

// PhoneNumberRoute maps a provider phone-number identity to the owning
// account. Rows are upserted whenever an account saves its credentials and
// are the only way inbound webhook traffic is attributed to a tenant.
type PhoneNumberRoute struct {
	PhoneNumberID string    `json:"phone_number_id" db:"phone_number_id"`
	AccountID     uuid.UUID `json:"account_id" db:"account_id"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusSuspended AccountStatus = "suspended"
)

const (
	PlanFree       = "free"
	PlanBasic      = "basic"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// QuotaRemaining returns how many sends the account has left this period.
func (a *Account) QuotaRemaining() int {
	if a.MessagesUsed >= a.MessageLimit {
		return 0
	}
	return a.MessageLimit - a.MessagesUsed
}
