package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressForm_Normalize(t *testing.T) {
	form := AddressForm{
		PostalCode:   " 01001-000 ",
		Street:       " Praça da Sé ",
		Number:       "10",
		Neighborhood: "Sé",
		City:         "São Paulo ",
		RegionCode:   "sp",
	}.Normalize()

	assert.Equal(t, "01001000", form.PostalCode)
	assert.Equal(t, "Praça da Sé", form.Street)
	assert.Equal(t, "São Paulo", form.City)
	assert.Equal(t, "SP", form.RegionCode)
	assert.Equal(t, "01001-000", form.FormattedPostalCode())
}

func TestAddressForm_MissingFields(t *testing.T) {
	assert.Equal(t,
		[]string{"postal_code", "street", "number", "neighborhood", "city", "region_code"},
		AddressForm{}.MissingFields())

	full := AddressForm{
		PostalCode:   "01001000",
		Street:       "Praça da Sé",
		Number:       "10",
		Neighborhood: "Sé",
		City:         "São Paulo",
		RegionCode:   "SP",
	}
	assert.Empty(t, full.MissingFields(), "complement is optional")

	full.Number = "   "
	assert.Equal(t, []string{"number"}, full.MissingFields())
}

func TestAddressForm_FillMissing_KeepsTypedFields(t *testing.T) {
	form := AddressForm{PostalCode: "01001000", Street: "Rua Digitada", Number: "7"}

	filled := form.FillMissing(PostalAddress{
		Street:       "Praça da Sé",
		Neighborhood: "Sé",
		City:         "São Paulo",
		RegionCode:   "sp",
	})

	assert.Equal(t, "Rua Digitada", filled.Street)
	assert.Equal(t, "Sé", filled.Neighborhood)
	assert.Equal(t, "São Paulo", filled.City)
	assert.Equal(t, "SP", filled.RegionCode)
	assert.Equal(t, "7", filled.Number)
}

func TestDigitsOnly_ASCIIOnly(t *testing.T) {
	assert.Equal(t, "01001000", DigitsOnly("01001-000"))
	assert.Equal(t, "45", DigitsOnly("०१२३4-5"))
	assert.Equal(t, "", DigitsOnly("٠١٢٣٤٥٦٧"))
}
