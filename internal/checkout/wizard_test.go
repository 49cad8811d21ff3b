package checkout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeForm() *Form {
	return &Form{
		Lines: []Line{{ProductID: 1, Quantity: 2, MinQuantity: 1, Stock: 10}},
		Customer: CustomerStep{
			Name:     "Maria Silva",
			Email:    "maria@example.com",
			Phone:    "11987654321",
			Document: "529.982.247-25",
		},
		Address: AddressStep{
			CEP: "01310-100", Street: "Av. Paulista", Number: "1000",
			District: "Bela Vista", City: "São Paulo", State: "SP",
		},
		Shipping: ShippingStep{Method: "standard"},
		Payment:  PaymentStep{Method: "pix"},
	}
}

func TestWizard_CompleteForm(t *testing.T) {
	w := New(completeForm())
	require.NoError(t, w.ValidateAll())

	next, err := w.Advance(StepCart)
	require.NoError(t, err)
	assert.Equal(t, StepCustomer, next)

	next, err = w.Advance(StepPayment)
	require.NoError(t, err)
	assert.Equal(t, Step(0), next)
}

func TestWizard_CartRules(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		field string
	}{
		{"empty", nil, "lines"},
		{"zero quantity", []Line{{ProductID: 1, Quantity: 0, Stock: 5}}, "lines[0].quantity"},
		{"below minimum", []Line{{ProductID: 1, Quantity: 5, MinQuantity: 10, Stock: 50}}, "lines[0].quantity"},
		{"over stock", []Line{{ProductID: 1, Quantity: 6, Stock: 5}}, "lines[0].quantity"},
		{"missing product", []Line{{Quantity: 1, Stock: 5}}, "lines[0].product_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := completeForm()
			f.Lines = tt.lines
			err := New(f).Validate(StepCart)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStepIncomplete)

			var se *StepError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, StepCart, se.Step)
			assert.Equal(t, tt.field, se.Fields[0].Field)
		})
	}
}

func TestWizard_AdvanceStopsAtFirstIncompleteStep(t *testing.T) {
	f := completeForm()
	f.Customer.Email = "not-an-email"
	f.Address.CEP = ""

	stuck, err := New(f).Advance(StepShipping)
	require.Error(t, err)
	assert.Equal(t, StepCustomer, stuck)

	var se *StepError
	require.True(t, errors.As(err, &se))
	require.Len(t, se.Fields, 1)
	assert.Equal(t, "customer.email", se.Fields[0].Field)
	assert.Contains(t, err.Error(), "customer step incomplete")
}

func TestWizard_ValidateSingleStepIgnoresOthers(t *testing.T) {
	f := completeForm()
	f.Customer = CustomerStep{}
	assert.NoError(t, New(f).Validate(StepAddress))
}

func TestWizard_PaymentStep(t *testing.T) {
	f := completeForm()
	f.Payment = PaymentStep{Method: "credit_card"}

	err := New(f).Validate(StepPayment)
	var se *StepError
	require.True(t, errors.As(err, &se))
	fields := map[string]string{}
	for _, fe := range se.Fields {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "This field is required", fields["payment.installments"])
	assert.Equal(t, "This field is required", fields["payment.card_token"])

	f.Payment = PaymentStep{Method: "credit_card", Installments: 3, CardToken: "tok_123"}
	assert.NoError(t, New(f).Validate(StepPayment))

	f.Payment = PaymentStep{Method: "bitcoin"}
	assert.ErrorIs(t, New(f).Validate(StepPayment), ErrStepIncomplete)
}

func TestWizard_Quote(t *testing.T) {
	f := &Form{
		Lines:    []Line{{Description: "Custom printed boxes", Quantity: 500}},
		Customer: completeForm().Customer,
	}
	w := NewQuote(f)
	assert.Equal(t, []Step{StepCart, StepCustomer}, w.Steps())
	require.NoError(t, w.ValidateAll())

	assert.ErrorIs(t, w.Validate(StepPayment), ErrUnknownStep)

	f.Lines = []Line{{Quantity: 10}}
	err := w.ValidateAll()
	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "lines[0].description", se.Fields[0].Field)
}

func TestStep_String(t *testing.T) {
	assert.Equal(t, "address", StepAddress.String())
	assert.Equal(t, "step 9", Step(9).String())
}
