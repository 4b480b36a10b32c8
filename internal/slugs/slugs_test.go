package slugs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeading(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Order Processing", "order-processing"},
		{"Step 2: Validate", "step-2-validate"},
		{"A__B", "a-b"},
		{"A - B", "a-b"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"!!!", ""},
		{"Привет мир", "привет-мир"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Heading(tt.in))
		})
	}
}

func TestComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"RetailCustomer", "retailcustomer"},
		{"Retail Customer", "retail-customer"},
		{"retail_customer", "retail-customer"},
		{"Special: Characters!", "special-characters"},
		{"Crème Brûlée", "creme-brulee"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Component(tt.in))
		})
	}
}
