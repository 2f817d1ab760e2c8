package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodPix  PaymentMethod = "PIX"
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodCash PaymentMethod = "CASH"
)

type CardType string

const (
	CardTypeCredit CardType = "CREDIT"
	CardTypeDebit  CardType = "DEBIT"
)

func (c CardType) Valid() bool {
	return c == CardTypeCredit || c == CardTypeDebit
}

// PaymentSelection is the confirmed way the customer pays. CardType and
// CardLast4 are set for card payments only, ChangeFor for cash only.
type PaymentSelection struct {
	Method    PaymentMethod    `json:"method"`
	CardType  CardType         `json:"card_type,omitempty"`
	CardLast4 string           `json:"card_last4,omitempty"`
	ChangeFor *decimal.Decimal `json:"change_for,omitempty"`
}

// CardForm is the card data typed by the customer. It is checked for format
// only and never stored beyond the last four digits.
type CardForm struct {
	Number     string   `json:"number"`
	HolderName string   `json:"holder_name"`
	Expiry     string   `json:"expiry"`
	CVV        string   `json:"cvv"`
	Type       CardType `json:"card_type"`
}

// InvalidFields lists the fields of the form that are missing or malformed.
func (f CardForm) InvalidFields() []string {
	var invalid []string

	number := DigitsOnly(f.Number)
	if len(number) < 13 || len(number) > 19 || !passesLuhn(number) {
		invalid = append(invalid, "number")
	}
	if strings.TrimSpace(f.HolderName) == "" {
		invalid = append(invalid, "holder_name")
	}
	if !validExpiry(f.Expiry) {
		invalid = append(invalid, "expiry")
	}
	cvv := strings.TrimSpace(f.CVV)
	if len(cvv) < 3 || len(cvv) > 4 || DigitsOnly(cvv) != cvv {
		invalid = append(invalid, "cvv")
	}
	return invalid
}

func (f CardForm) Last4() string {
	number := DigitsOnly(f.Number)
	if len(number) < 4 {
		return number
	}
	return number[len(number)-4:]
}

// validExpiry accepts MM/YY with a month between 01 and 12.
func validExpiry(expiry string) bool {
	parts := strings.Split(strings.TrimSpace(expiry), "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return false
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return false
	}
	_, err = strconv.Atoi(parts[1])
	return err == nil
}

// passesLuhn implements the standard Mod 10 check used by all banks
func passesLuhn(number string) bool {
	sum := 0
	alternate := false
	for i := len(number) - 1; i >= 0; i-- {
		n := int(number[i] - '0')
		if alternate {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alternate = !alternate
	}
	return sum%10 == 0
}
