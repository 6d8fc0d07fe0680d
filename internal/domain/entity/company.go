package entity

import "time"

// Company is the local mirror of a remote CRM company, joined on ExternalID
type Company struct {
	ID           string         `json:"id" db:"id"`
	ExternalID   string         `json:"external_id" db:"external_id"`
	Name         string         `json:"name" db:"name"`
	Website      *string        `json:"website,omitempty" db:"website"`
	VATNumber    *string        `json:"vat_number,omitempty" db:"vat_number"`
	BusinessType *string        `json:"business_type,omitempty" db:"business_type"`
	Address      *Address       `json:"address,omitempty" db:"address"`
	ContactInfos []ContactInfo  `json:"contact_infos" db:"contact_infos"`
	CustomFields map[string]any `json:"custom_fields" db:"custom_fields"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
	LastSyncedAt *time.Time     `json:"last_synced_at,omitempty" db:"last_synced_at"`
}

type Address struct {
	Type       string `json:"type,omitempty"`
	Line1      string `json:"line_1,omitempty"`
	Line2      string `json:"line_2,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
}

// ContactInfo is one contact channel, Type looks like "email-primary" or "phone-work"
type ContactInfo struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
