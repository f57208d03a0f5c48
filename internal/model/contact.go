package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ContactStatus string

const (
	ContactStatusActive  ContactStatus = "active"
	ContactStatusBlocked ContactStatus = "blocked"
	ContactStatusInvalid ContactStatus = "invalid"
)

type Contact struct {
	ID                    uuid.UUID      `json:"id" db:"id"`
	AccountID             uuid.UUID      `json:"account_id" db:"account_id"`
	PhoneNumber           string         `json:"phone_number" db:"phone_number"`
	NormalizedPhoneNumber string         `json:"normalized_phone_number" db:"normalized_phone_number"`
	FirstName             string         `json:"first_name" db:"first_name"`
	LastName              string         `json:"last_name" db:"last_name"`
	Email                 string         `json:"email" db:"email"`
	Tags                  pq.StringArray `json:"tags" db:"tags"`
	IsUnsubscribed        bool           `json:"is_unsubscribed" db:"is_unsubscribed"`
	UnsubscribeDate       *time.Time     `json:"unsubscribe_date,omitempty" db:"unsubscribe_date"`
	LastMessageDate       *time.Time     `json:"last_message_date,omitempty" db:"last_message_date"`
	MessageCount          int            `json:"message_count" db:"message_count"`
	Status                ContactStatus  `json:"status" db:"status"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at" db:"updated_at"`
}

// FullName returns a display name, falling back to the phone number.
func (c *Contact) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	default:
		return c.PhoneNumber
	}
}

// Sendable reports whether a campaign may message this contact right now.
func (c *Contact) Sendable() bool {
	return c.Status == ContactStatusActive && !c.IsUnsubscribed
}

// ContactFilters narrows contact listings and campaign audience resolution.
type ContactFilters struct {
	Tags                 []string `json:"tags" form:"tags"`
	ExcludeUnsubscribed  bool     `json:"exclude_unsubscribed" form:"exclude_unsubscribed"`
	Status               string   `json:"status" form:"status"`
	Search               string   `json:"search" form:"search"`
}
