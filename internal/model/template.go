package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TemplateStatus string

const (
	TemplateStatusPending  TemplateStatus = "PENDING"
	TemplateStatusApproved TemplateStatus = "APPROVED"
	TemplateStatusRejected TemplateStatus = "REJECTED"
	TemplateStatusPaused   TemplateStatus = "PAUSED"
	TemplateStatusDisabled TemplateStatus = "DISABLED"
)

// Header formats as reported by the provider.
const (
	HeaderFormatText     = "TEXT"
	HeaderFormatImage    = "IMAGE"
	HeaderFormatVideo    = "VIDEO"
	HeaderFormatDocument = "DOCUMENT"
	HeaderFormatLocation = "LOCATION"
)

// TemplateComponent mirrors one entry of the provider's template
// components array (HEADER / BODY / FOOTER / BUTTONS).
type TemplateComponent struct {
	Type    string           `json:"type"`
	Format  string           `json:"format,omitempty"`
	Text    string           `json:"text,omitempty"`
	Buttons []TemplateButton `json:"buttons,omitempty"`
}

type TemplateButton struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
}

// TemplateComponents is stored as a jsonb column.
type TemplateComponents []TemplateComponent

func (tc TemplateComponents) Value() (driver.Value, error) {
	return json.Marshal(tc)
}

func (tc *TemplateComponents) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, tc)
	case string:
		return json.Unmarshal([]byte(v), tc)
	case nil:
		*tc = nil
		return nil
	default:
		return fmt.Errorf("unsupported type for TemplateComponents: %T", src)
	}
}

// TemplateParameter is one named positional body placeholder ({{N}}).
type TemplateParameter struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type TemplateParameters []TemplateParameter

// Contains reports whether a placeholder key is already present.
func (tp TemplateParameters) Contains(key string) bool {
	for _, p := range tp {
		if p.Key == key {
			return true
		}
	}
	return false
}

func (tp TemplateParameters) Value() (driver.Value, error) {
	return json.Marshal(tp)
}

func (tp *TemplateParameters) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, tp)
	case string:
		return json.Unmarshal([]byte(v), tp)
	case nil:
		*tp = nil
		return nil
	default:
		return fmt.Errorf("unsupported type for TemplateParameters: %T", src)
	}
}

// Template is a locally synced copy of a provider-approved message shape.
// The analyzed fields (HeaderType, HeaderRequiresParam, BodyParameters) are
// derived from Components at sync time and drive campaign parameter mapping.
type Template struct {
	ID                  uuid.UUID          `json:"id" db:"id"`
	AccountID           uuid.UUID          `json:"account_id" db:"account_id"`
	Name                string             `json:"name" db:"name"`
	Language            string             `json:"language" db:"language"`
	Status              TemplateStatus     `json:"status" db:"status"`
	Category            string             `json:"category" db:"category"`
	Components          TemplateComponents `json:"components" db:"components"`
	HeaderType          string             `json:"header_type" db:"header_type"`
	HeaderRequiresParam bool               `json:"header_requires_param" db:"header_requires_param"`
	BodyParameters      TemplateParameters `json:"body_parameters" db:"body_parameters"`
	SyncedAt            *time.Time         `json:"synced_at,omitempty" db:"synced_at"`
	CreatedAt           time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at" db:"updated_at"`
}

func (t *Template) IsApproved() bool {
	return t.Status == TemplateStatusApproved
}
