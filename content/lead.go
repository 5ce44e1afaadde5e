package content

import (
	"fmt"
	"time"
)

// LeadType is the closed set of lead categories.
type LeadType string

const (
	LeadResidential    LeadType = "residential"
	LeadHousingSociety LeadType = "housing_society"
	LeadCommercial     LeadType = "commercial"
)

// LeadTypes lists every LeadType in display order.
var LeadTypes = []LeadType{LeadResidential, LeadHousingSociety, LeadCommercial}

func ParseLeadType(s string) (LeadType, error) {
	switch t := LeadType(s); t {
	case LeadResidential, LeadHousingSociety, LeadCommercial:
		return t, nil
	default:
		return "", fmt.Errorf("unknown lead type %q", s)
	}
}

func (t LeadType) String() string { return string(t) }

func (t *LeadType) UnmarshalText(b []byte) error {
	v, err := ParseLeadType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t LeadType) MarshalText() ([]byte, error) {
	if _, err := ParseLeadType(string(t)); err != nil {
		return nil, err
	}
	return []byte(t), nil
}

// Lead is a sales enquiry from the landing page. Leads are created
// elsewhere; this module only reads and deletes them.
type Lead struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	WhatsappNumber  string    `json:"whatsappNumber"`
	ElectricityBill float64   `json:"electricityBill"`
	City            string    `json:"city"`
	Type            LeadType  `json:"type"`
	CreatedAt       time.Time `json:"createdAt"`
}
