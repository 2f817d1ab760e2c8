package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckoutStep_Sequence(t *testing.T) {
	assert.Equal(t, CheckoutStepAddress, CheckoutStepCart.Next())
	assert.Equal(t, CheckoutStepConfirmation, CheckoutStepConfirmation.Next(), "clamped at the last step")
	assert.Equal(t, CheckoutStepCart, CheckoutStepCart.Prev(), "clamped at the first step")
	assert.Equal(t, CheckoutStepAddress, CheckoutStepPayment.Prev())
	assert.True(t, CheckoutStepConfirmation.IsLast())
	assert.Equal(t, -1, CheckoutStep("SHIPPING").Index())
}

func TestCheckoutStep_CanTransitionTo(t *testing.T) {
	assert.True(t, CheckoutStepCart.CanTransitionTo(CheckoutStepAddress))
	assert.True(t, CheckoutStepPayment.CanTransitionTo(CheckoutStepAddress))
	assert.False(t, CheckoutStepCart.CanTransitionTo(CheckoutStepPayment))
	assert.False(t, CheckoutStepCart.CanTransitionTo(CheckoutStepCart))
	assert.False(t, CheckoutStepCart.CanTransitionTo(CheckoutStep("SHIPPING")))
}
