package flight

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	contractx "github.com/voyago/voyago/agent/contract"
)

const dateLayout = "2006-01-02"

type TripType string

const (
	TripOneWay    TripType = "one-way"
	TripRoundTrip TripType = "round-trip"
)

// Direction tags which half of a round trip an offer belongs to.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionReturn   Direction = "return"
)

// Query is one flight request as the orchestrating agent expresses it.
// FlexDays is a ±N flexible-date window; 0 means the date is fixed.
type Query struct {
	TripType    TripType
	Origin      string
	Destination string
	Date        string
	ReturnDate  string
	FlexDays    int
	Passengers  int
	Filters     map[string]any
}

const maxFlexDays = 7

func (q Query) Validate() error {
	if strings.TrimSpace(q.Origin) == "" {
		return fmt.Errorf("%w: origin is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(q.Destination) == "" {
		return fmt.Errorf("%w: destination is required", contractx.ErrValidation)
	}
	if q.TripType != TripOneWay && q.TripType != TripRoundTrip {
		return fmt.Errorf("%w: unsupported trip type %q", contractx.ErrValidation, q.TripType)
	}
	if _, err := time.Parse(dateLayout, q.Date); err != nil {
		return fmt.Errorf("%w: invalid outbound date %q", contractx.ErrValidation, q.Date)
	}
	if q.ReturnDate != "" {
		if _, err := time.Parse(dateLayout, q.ReturnDate); err != nil {
			return fmt.Errorf("%w: invalid return date %q", contractx.ErrValidation, q.ReturnDate)
		}
	}
	if q.FlexDays < 0 || q.FlexDays > maxFlexDays {
		return fmt.Errorf("%w: flexibility window must be within 0..%d days", contractx.ErrValidation, maxFlexDays)
	}
	if q.TripType == TripRoundTrip && q.ReturnDate == "" && q.FlexDays == 0 {
		return fmt.Errorf("%w: round trip needs a return date or a flexible-date window", contractx.ErrValidation)
	}
	if q.Passengers <= 0 {
		return fmt.Errorf("%w: passengers must be > 0", contractx.ErrValidation)
	}
	return nil
}

// Offer is one flight offer a provider returned. MatchedDate is the date
// the offer was actually matched against, which under flexible search may
// differ from the requested date.
type Offer struct {
	ID          string    `mapstructure:"id" json:"id"`
	Airline     string    `mapstructure:"airline" json:"airline"`
	Origin      string    `mapstructure:"origin" json:"origin"`
	Destination string    `mapstructure:"destination" json:"destination"`
	MatchedDate string    `mapstructure:"matched_date" json:"matched_date"`
	DepartTime  string    `mapstructure:"depart_time" json:"depart_time,omitempty"`
	Price       float64   `mapstructure:"price" json:"price"`
	Currency    string    `mapstructure:"currency" json:"currency,omitempty"`
	Direction   Direction `mapstructure:"-" json:"direction"`
}

// Leg is one directional half of a query, plus its offers once executed.
type Leg struct {
	Origin      string
	Destination string
	Date        string
	Passengers  int
	FlexDays    int
	Filters     map[string]any
	Direction   Direction
	Offers      []Offer
}

// RoundTripResult merges both legs. Error is true only when no leg produced
// offers because both failed; a failed return leg alone keeps Error false,
// so callers must check each leg's emptiness, not just the flag.
type RoundTripResult struct {
	Error    bool              `json:"error"`
	Outbound []Offer           `json:"outbound"`
	Return   []Offer           `json:"return"`
	Note     string            `json:"note,omitempty"`
	Faults   []*contractx.Fault `json:"faults,omitempty"`
}

// decodeOffers reads the provider's offers list out of a success payload.
// Provider payloads are loosely typed (JSON numbers, string prices), so the
// decode is deliberately weak.
func decodeOffers(payload map[string]any) ([]Offer, error) {
	raw, ok := payload["offers"]
	if !ok {
		return nil, nil
	}

	var offers []Offer
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &offers,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("build offer decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}
	return offers, nil
}
