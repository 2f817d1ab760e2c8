package domain

import (
	"strings"
)

// AddressForm holds the delivery address. Complement is the only optional field.
type AddressForm struct {
	PostalCode   string `json:"postal_code"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	RegionCode   string `json:"region_code"`
}

// PostalAddress is what a postal-code lookup knows about a code.
type PostalAddress struct {
	Street       string `json:"street"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	RegionCode   string `json:"region_code"`
}

// Normalize trims every field, keeps only the digits of the postal code and
// upper-cases the region code.
func (a AddressForm) Normalize() AddressForm {
	return AddressForm{
		PostalCode:   DigitsOnly(a.PostalCode),
		Street:       strings.TrimSpace(a.Street),
		Number:       strings.TrimSpace(a.Number),
		Complement:   strings.TrimSpace(a.Complement),
		Neighborhood: strings.TrimSpace(a.Neighborhood),
		City:         strings.TrimSpace(a.City),
		RegionCode:   strings.ToUpper(strings.TrimSpace(a.RegionCode)),
	}
}

// MissingFields lists the required fields that are blank, in form order.
func (a AddressForm) MissingFields() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"postal_code", a.PostalCode},
		{"street", a.Street},
		{"number", a.Number},
		{"neighborhood", a.Neighborhood},
		{"city", a.City},
		{"region_code", a.RegionCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// FillMissing copies the looked-up fields the form does not already hold.
func (a AddressForm) FillMissing(found PostalAddress) AddressForm {
	if strings.TrimSpace(a.Street) == "" {
		a.Street = found.Street
	}
	if strings.TrimSpace(a.Neighborhood) == "" {
		a.Neighborhood = found.Neighborhood
	}
	if strings.TrimSpace(a.City) == "" {
		a.City = found.City
	}
	if strings.TrimSpace(a.RegionCode) == "" {
		a.RegionCode = found.RegionCode
	}
	return a.Normalize()
}

// FormattedPostalCode renders an 8-digit code as 00000-000.
func (a AddressForm) FormattedPostalCode() string {
	if len(a.PostalCode) != 8 {
		return a.PostalCode
	}
	return a.PostalCode[:5] + "-" + a.PostalCode[5:]
}

func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}
