package domain

type CheckoutStep string

const (
	CheckoutStepCart         CheckoutStep = "CART"
	CheckoutStepAddress      CheckoutStep = "ADDRESS"
	CheckoutStepPayment      CheckoutStep = "PAYMENT"
	CheckoutStepConfirmation CheckoutStep = "CONFIRMATION"
)

var checkoutSteps = []CheckoutStep{
	CheckoutStepCart,
	CheckoutStepAddress,
	CheckoutStepPayment,
	CheckoutStepConfirmation,
}

// Index returns the position of s in the checkout sequence, or -1.
func (s CheckoutStep) Index() int {
	for i, step := range checkoutSteps {
		if step == s {
			return i
		}
	}
	return -1
}

func (s CheckoutStep) IsLast() bool {
	return s == CheckoutStepConfirmation
}

// Next returns the following step, clamped at Confirmation.
func (s CheckoutStep) Next() CheckoutStep {
	i := s.Index()
	if i < 0 || i == len(checkoutSteps)-1 {
		return s
	}
	return checkoutSteps[i+1]
}

// Prev returns the preceding step, clamped at Cart.
func (s CheckoutStep) Prev() CheckoutStep {
	i := s.Index()
	if i <= 0 {
		return s
	}
	return checkoutSteps[i-1]
}

// CanTransitionTo reports whether moving from s to next is a single step in
// either direction.
func (s CheckoutStep) CanTransitionTo(next CheckoutStep) bool {
	from, to := s.Index(), next.Index()
	if from < 0 || to < 0 {
		return false
	}
	return from-to == 1 || to-from == 1
}

// String representation (for logging)
func (s CheckoutStep) String() string {
	return string(s)
}
