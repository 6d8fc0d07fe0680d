package usecase

import (
	"github.com/tidwall/gjson"

	"crm-sync/internal/domain/entity"
)

// MapCompany overwrites the synced fields of company with a companies.info payload.
// Absent and null fields are cleared, the local id and timestamps are kept.
func MapCompany(data gjson.Result, company *entity.Company) {
	company.Name = data.Get("name").String()
	company.Website = optionalString(data.Get("website"))
	company.VATNumber = optionalString(data.Get("vat_number"))
	company.BusinessType = optionalString(data.Get("business_type.id"))
	company.Address = primaryAddress(data.Get("addresses").Array())
	company.ContactInfos = contactInfos(data.Get("emails"), data.Get("telephones"))
	company.CustomFields = ExtractCustomFields(data.Get("custom_fields"))
}

// ExtractCustomFields accepts either the list form
// [{"definition":{"id":..},"value":..}] or a plain object keyed by field id.
// Null values are skipped.
func ExtractCustomFields(fields gjson.Result) map[string]any {
	result := map[string]any{}

	switch {
	case fields.IsArray():
		for _, field := range fields.Array() {
			id := field.Get("definition.id").String()
			if id == "" {
				id = field.Get("id").String()
			}
			if id == "" {
				continue
			}
			if value, ok := coerceValue(field.Get("value")); ok {
				result[id] = value
			}
		}
	case fields.IsObject():
		fields.ForEach(func(key, value gjson.Result) bool {
			if v, ok := coerceValue(value); ok {
				result[key.String()] = v
			}
			return true
		})
	}

	return result
}

// coerceValue passes strings, numbers and booleans through and keeps anything
// else as its raw JSON text
func coerceValue(value gjson.Result) (any, bool) {
	switch value.Type {
	case gjson.Null:
		return nil, false
	case gjson.String:
		return value.String(), true
	case gjson.Number:
		return value.Float(), true
	case gjson.True, gjson.False:
		return value.Bool(), true
	default:
		if !value.Exists() {
			return nil, false
		}
		return value.Raw, true
	}
}

func primaryAddress(addresses []gjson.Result) *entity.Address {
	if len(addresses) == 0 {
		return nil
	}

	chosen := addresses[0]
	for _, a := range addresses {
		if a.Get("type").String() == "primary" {
			chosen = a
			break
		}
	}

	address := chosen.Get("address")
	return &entity.Address{
		Type:       chosen.Get("type").String(),
		Line1:      address.Get("line_1").String(),
		Line2:      address.Get("line_2").String(),
		PostalCode: address.Get("postal_code").String(),
		City:       address.Get("city").String(),
		Country:    address.Get("country").String(),
	}
}

func contactInfos(emails, telephones gjson.Result) []entity.ContactInfo {
	contacts := []entity.ContactInfo{}

	for _, e := range emails.Array() {
		if value := e.Get("email").String(); value != "" {
			contacts = append(contacts, entity.ContactInfo{Type: "email-" + e.Get("type").String(), Value: value})
		}
	}
	for _, p := range telephones.Array() {
		if value := p.Get("number").String(); value != "" {
			contacts = append(contacts, entity.ContactInfo{Type: "phone-" + p.Get("type").String(), Value: value})
		}
	}

	return contacts
}

func optionalString(value gjson.Result) *string {
	if value.Type == gjson.Null || value.String() == "" {
		return nil
	}
	s := value.String()
	return &s
}
