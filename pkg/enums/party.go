package enums

import "fmt"

// Party identifies which side of the order an actor belongs to.
type Party string

const (
	PartyCustomer Party = "customer"
	PartyProvider Party = "provider"
)

var validParties = []Party{PartyCustomer, PartyProvider}

// String implements fmt.Stringer.
func (p Party) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Party.
func (p Party) IsValid() bool {
	for _, candidate := range validParties {
		if candidate == p {
			return true
		}
	}
	return false
}

// Counterparty returns the other side of the order.
func (p Party) Counterparty() Party {
	if p == PartyCustomer {
		return PartyProvider
	}
	return PartyCustomer
}

// ParseParty converts raw input into a Party.
func ParseParty(value string) (Party, error) {
	for _, candidate := range validParties {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid party %q", value)
}
