package usecase

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"crm-sync/internal/domain/entity"
)

const fullCompanyPayload = `{
	"id": "e8d31ad7-eab8-4ab7-a1e7-36e8f4c0b6a4",
	"name": "Pied Piper",
	"business_type": {"type": "businessType", "id": "fd48d4a3-b9dc-4eac-8071-5889c9f21e5d"},
	"vat_number": "BE0899623035",
	"emails": [
		{"type": "primary", "email": "info@piedpiper.eu"},
		{"type": "invoicing", "email": "billing@piedpiper.eu"}
	],
	"telephones": [
		{"type": "phone", "number": "092980615"},
		{"type": "fax", "number": ""}
	],
	"website": "https://piedpiper.com",
	"addresses": [
		{"type": "invoicing", "address": {"line_1": "Billing 1", "city": "Brussels", "country": "BE"}},
		{"type": "primary", "address": {"line_1": "Dok Noord 3A 101", "line_2": null, "postal_code": "9000", "city": "Ghent", "country": "BE"}}
	],
	"custom_fields": [
		{"definition": {"type": "customFieldDefinition", "id": "bf6765de"}, "value": "092980615"},
		{"definition": {"type": "customFieldDefinition", "id": "seats"}, "value": 12.5}
	]
}`

func strPtr(s string) *string { return &s }

func TestMapCompanyFullPayload(t *testing.T) {
	company := &entity.Company{ID: "local-id", ExternalID: "e8d31ad7-eab8-4ab7-a1e7-36e8f4c0b6a4"}

	MapCompany(gjson.Parse(fullCompanyPayload), company)

	want := &entity.Company{
		ID:           "local-id",
		ExternalID:   "e8d31ad7-eab8-4ab7-a1e7-36e8f4c0b6a4",
		Name:         "Pied Piper",
		Website:      strPtr("https://piedpiper.com"),
		VATNumber:    strPtr("BE0899623035"),
		BusinessType: strPtr("fd48d4a3-b9dc-4eac-8071-5889c9f21e5d"),
		Address: &entity.Address{
			Type:       "primary",
			Line1:      "Dok Noord 3A 101",
			PostalCode: "9000",
			City:       "Ghent",
			Country:    "BE",
		},
		ContactInfos: []entity.ContactInfo{
			{Type: "email-primary", Value: "info@piedpiper.eu"},
			{Type: "email-invoicing", Value: "billing@piedpiper.eu"},
			{Type: "phone-phone", Value: "092980615"},
		},
		CustomFields: map[string]any{"bf6765de": "092980615", "seats": 12.5},
	}
	if diff := cmp.Diff(want, company); diff != "" {
		t.Errorf("MapCompany mismatch (-want +got):\n%s", diff)
	}
}

func TestMapCompanyEmptyPayloadClearsSyncedFields(t *testing.T) {
	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	company := &entity.Company{
		ID:           "local-id",
		ExternalID:   "ext-1",
		Name:         "Existing",
		Website:      strPtr("https://existing.test"),
		VATNumber:    strPtr("BE0000000000"),
		Address:      &entity.Address{Type: "primary", City: "Ghent"},
		ContactInfos: []entity.ContactInfo{{Type: "email-primary", Value: "a@b.c"}},
		CustomFields: map[string]any{"segment": "smb"},
		CreatedAt:    createdAt,
	}

	assert.NotPanics(t, func() {
		MapCompany(gjson.Parse(`{}`), company)
	})

	want := &entity.Company{
		ID:           "local-id",
		ExternalID:   "ext-1",
		ContactInfos: []entity.ContactInfo{},
		CustomFields: map[string]any{},
		CreatedAt:    createdAt,
	}
	if diff := cmp.Diff(want, company); diff != "" {
		t.Errorf("empty payload mismatch (-want +got):\n%s", diff)
	}
}

func TestMapCompanyNullFieldsClearValues(t *testing.T) {
	company := &entity.Company{Website: strPtr("https://old.test"), BusinessType: strPtr("old")}

	MapCompany(gjson.Parse(`{"website":null,"business_type":null,"addresses":[]}`), company)

	assert.Nil(t, company.Website)
	assert.Nil(t, company.BusinessType)
	assert.Nil(t, company.Address)
}

func TestMapCompanyFirstAddressWithoutPrimary(t *testing.T) {
	company := &entity.Company{}

	MapCompany(gjson.Parse(`{"addresses":[{"type":"delivery","address":{"city":"Antwerp"}},{"type":"invoicing","address":{"city":"Ghent"}}]}`), company)

	assert.Equal(t, &entity.Address{Type: "delivery", City: "Antwerp"}, company.Address)
}

func TestExtractCustomFields(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{
			name: "list form",
			in:   `[{"definition":{"id":"a"},"value":"x"},{"definition":{"id":"b"},"value":false},{"definition":{"id":"c"},"value":{"k":1}},{"definition":{"id":"d"},"value":null},{"value":"orphan"}]`,
			want: map[string]any{"a": "x", "b": false, "c": `{"k":1}`},
		},
		{
			name: "object form",
			in:   `{"a":"x","n":3,"skip":null}`,
			want: map[string]any{"a": "x", "n": float64(3)},
		},
		{
			name: "not a container",
			in:   `"nope"`,
			want: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCustomFields(gjson.Parse(tt.in)))
		})
	}
}
