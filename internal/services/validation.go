package services

import (
	"fmt"
	"net/mail"
	"strings"
)

func validateContact(contact OrderContact) error {
	if strings.TrimSpace(contact.Name) == "" {
		return fmt.Errorf("%w: contact name is required", ErrOrderInvalidInput)
	}
	email := strings.TrimSpace(contact.Email)
	if email == "" {
		return fmt.Errorf("%w: contact email is required", ErrOrderInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid contact email %q", ErrOrderInvalidInput, email)
	}
	return nil
}

func validateDelivery(addr DeliveryAddress) error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(addr.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(addr.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	if strings.TrimSpace(addr.Country) == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: delivery address is missing %s", ErrOrderInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

func trimContact(contact OrderContact) OrderContact {
	return OrderContact{
		Name:  strings.TrimSpace(contact.Name),
		Email: strings.TrimSpace(contact.Email),
		Phone: strings.TrimSpace(contact.Phone),
	}
}

func trimDelivery(addr DeliveryAddress) DeliveryAddress {
	return DeliveryAddress{
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      strings.TrimSpace(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		Region:     strings.TrimSpace(addr.Region),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
	}
}
