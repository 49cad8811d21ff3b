// Package checkout gates the checkout and quote wizards. Each step is a set
// of required fields; a step may only be entered once every earlier step is
// valid, and an order is placed only when all steps are.
package checkout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"storefront/internal/validation"

	"github.com/go-playground/validator/v10"
)

// Step numbers, in wizard order
type Step int

const (
	StepCart Step = iota + 1
	StepCustomer
	StepAddress
	StepShipping
	StepPayment
)

// String returns the step name used in responses
func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepCustomer:
		return "customer"
	case StepAddress:
		return "address"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	}
	return "step " + strconv.Itoa(int(s))
}

var (
	ErrStepIncomplete = errors.New("checkout step incomplete")
	ErrUnknownStep    = errors.New("unknown checkout step")
)

// StepError lists the fields that keep a step from being complete
type StepError struct {
	Step   Step                    `json:"step"`
	Fields []validation.FieldError `json:"fields"`
}

func (e *StepError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return fmt.Sprintf("%s step incomplete: %s", e.Step, strings.Join(names, ", "))
}

// Is makes errors.Is(err, ErrStepIncomplete) hold for every StepError
func (e *StepError) Is(target error) bool {
	return target == ErrStepIncomplete
}

// Line is one cart or quote line as the wizard sees it
type Line struct {
	ProductID   uint   `json:"product_id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	MinQuantity int    `json:"-"`
	Stock       int    `json:"-"`
}

// CustomerStep is the buyer contact
type CustomerStep struct {
	Name     string `json:"name" validate:"required,min=3,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,min=10,max=30"`
	Document string `json:"document" validate:"required,document"`
}

// AddressStep is the delivery address
type AddressStep struct {
	CEP        string `json:"cep" validate:"required,cep"`
	Street     string `json:"street" validate:"required,max=200"`
	Number     string `json:"number" validate:"required,max=20"`
	Complement string `json:"complement" validate:"max=100"`
	District   string `json:"district" validate:"required,max=100"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,uf"`
}

// ShippingStep picks the delivery method
type ShippingStep struct {
	Method string `json:"method" validate:"required,oneof=standard express pickup"`
}

// PaymentStep picks the payment method. Cards arrive tokenised by the
// gateway's browser SDK; the card number never reaches this service.
type PaymentStep struct {
	Method       string `json:"method" validate:"required,oneof=pix boleto credit_card"`
	Installments int    `json:"installments" validate:"required_if=Method credit_card,omitempty,gte=1,lte=24"`
	CardToken    string `json:"card_token" validate:"required_if=Method credit_card"`
}

// Form is everything the wizard collects
type Form struct {
	Lines    []Line       `json:"lines"`
	Customer CustomerStep `json:"customer"`
	Address  AddressStep  `json:"address"`
	Shipping ShippingStep `json:"shipping"`
	Payment  PaymentStep  `json:"payment"`
	Coupon   string       `json:"coupon"`
	Notes    string       `json:"notes"`
}

// Wizard validates a Form step by step
type Wizard struct {
	form  *Form
	quote bool
	v     *validator.Validate
}

var sharedValidator = validation.New()

// New returns the five-step checkout wizard over form
func New(form *Form) *Wizard {
	return &Wizard{form: form, v: sharedValidator}
}

// NewQuote returns the quote wizard: lines may be free text and only the
// cart and customer steps are asked.
func NewQuote(form *Form) *Wizard {
	return &Wizard{form: form, quote: true, v: sharedValidator}
}

// Steps lists the steps this wizard asks, in order
func (w *Wizard) Steps() []Step {
	if w.quote {
		return []Step{StepCart, StepCustomer}
	}
	return []Step{StepCart, StepCustomer, StepAddress, StepShipping, StepPayment}
}

func (w *Wizard) has(step Step) bool {
	for _, s := range w.Steps() {
		if s == step {
			return true
		}
	}
	return false
}

// Validate checks one step only
func (w *Wizard) Validate(step Step) error {
	if !w.has(step) {
		return ErrUnknownStep
	}
	var fields []validation.FieldError
	switch step {
	case StepCart:
		fields = w.cartFields()
	case StepCustomer:
		fields = w.structFields(&w.form.Customer, "customer")
	case StepAddress:
		fields = w.structFields(&w.form.Address, "address")
	case StepShipping:
		fields = w.structFields(&w.form.Shipping, "shipping")
	case StepPayment:
		fields = w.structFields(&w.form.Payment, "payment")
	}
	if len(fields) > 0 {
		return &StepError{Step: step, Fields: fields}
	}
	return nil
}

// Advance validates every step up to and including from and returns the next
// step. Advancing from the last step returns zero.
func (w *Wizard) Advance(from Step) (Step, error) {
	if !w.has(from) {
		return 0, ErrUnknownStep
	}
	steps := w.Steps()
	for i, s := range steps {
		if err := w.Validate(s); err != nil {
			return s, err
		}
		if s == from {
			if i+1 < len(steps) {
				return steps[i+1], nil
			}
			return 0, nil
		}
	}
	return 0, ErrUnknownStep
}

// ValidateAddress applies the address step rules to a alone. Quote
// conversion uses it, the quote wizard having skipped the step.
func ValidateAddress(a *AddressStep) error {
	w := &Wizard{form: &Form{Address: *a}, v: sharedValidator}
	return w.Validate(StepAddress)
}

// ValidateAll gates placement: every step must be complete
func (w *Wizard) ValidateAll() error {
	steps := w.Steps()
	_, err := w.Advance(steps[len(steps)-1])
	return err
}

func (w *Wizard) structFields(s any, prefix string) []validation.FieldError {
	fields := validation.Fields(w.v.Struct(s))
	for i := range fields {
		fields[i].Field = prefix + "." + fields[i].Field
	}
	return fields
}

// cartFields checks quantities against the product rules. Quote lines skip
// the stock check and may describe an item not in the catalog.
func (w *Wizard) cartFields() []validation.FieldError {
	if len(w.form.Lines) == 0 {
		return []validation.FieldError{{Field: "lines", Message: "Cart is empty"}}
	}
	var fields []validation.FieldError
	for i, l := range w.form.Lines {
		name := "lines[" + strconv.Itoa(i) + "]"
		switch {
		case l.Quantity < 1:
			fields = append(fields, validation.FieldError{Field: name + ".quantity", Message: "Must be at least 1"})
		case l.MinQuantity > 1 && l.Quantity < l.MinQuantity:
			fields = append(fields, validation.FieldError{Field: name + ".quantity", Message: "Must be at least " + strconv.Itoa(l.MinQuantity)})
		case !w.quote && l.Quantity > l.Stock:
			fields = append(fields, validation.FieldError{Field: name + ".quantity", Message: "Only " + strconv.Itoa(l.Stock) + " in stock"})
		}
		if l.ProductID == 0 {
			if !w.quote {
				fields = append(fields, validation.FieldError{Field: name + ".product_id", Message: "This field is required"})
			} else if strings.TrimSpace(l.Description) == "" {
				fields = append(fields, validation.FieldError{Field: name + ".description", Message: "Describe the item or pick a product"})
			}
		}
	}
	return fields
}
