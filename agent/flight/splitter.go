package flight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/voyago/voyago/agent/contract"
)

var (
	// ErrNoReturnDate means the flexible-date search could not produce a
	// target date for the return leg at all.
	ErrNoReturnDate = errors.New("no return date could be determined")
	// ErrReturnLegEmpty means a return date was determined but no offers
	// matched it. Kept distinct so callers can tell the two apart.
	ErrReturnLegEmpty = errors.New("return date determined but no offers matched")
)

// The return window centers on a now-known target rather than an open
// search, so it is clamped narrower than the outbound window.
const maxReturnFlexDays = 3

// Splitter turns one round-trip request into two independent directional
// invocations of the flight search tool and merges the tagged results.
type Splitter struct {
	invoker    contractx.Invoker
	searchTool string
}

func NewSplitter(invoker contractx.Invoker, searchTool string) (*Splitter, error) {
	if invoker == nil {
		return nil, errors.New("invoker is required")
	}
	searchTool = strings.TrimSpace(searchTool)
	if searchTool == "" {
		return nil, errors.New("search tool name is required")
	}
	return &Splitter{invoker: invoker, searchTool: searchTool}, nil
}

// Search executes the query. One-way queries run a single leg; round trips
// are split per direction. The returned error covers malformed queries
// only; provider-side failures are reported inside the result.
func (s *Splitter) Search(ctx context.Context, q Query) (RoundTripResult, error) {
	if err := q.Validate(); err != nil {
		return RoundTripResult{}, err
	}

	if q.TripType == TripOneWay {
		leg := s.outboundLeg(q)
		fault := s.runLeg(ctx, &leg)
		result := RoundTripResult{Outbound: leg.Offers, Return: []Offer{}}
		if result.Outbound == nil {
			result.Outbound = []Offer{}
		}
		if fault != nil {
			result.Error = true
			result.Faults = append(result.Faults, fault)
		}
		return result, nil
	}

	if q.ReturnDate != "" {
		return s.searchExplicit(ctx, q), nil
	}
	return s.searchFlexible(ctx, q), nil
}

// searchExplicit runs both legs concurrently: with a known return date they
// have no ordering dependency.
func (s *Splitter) searchExplicit(ctx context.Context, q Query) RoundTripResult {
	legA := s.outboundLeg(q)
	legB := s.returnLeg(q, q.ReturnDate)

	var faultA, faultB *contractx.Fault
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		faultA = s.runLeg(gctx, &legA)
		return nil
	})
	g.Go(func() error {
		faultB = s.runLeg(gctx, &legB)
		return nil
	})
	_ = g.Wait()

	return mergeLegs(legA, legB, faultA, faultB, true)
}

// searchFlexible must run the outbound leg first: the return date is
// derived from the date the first outbound offer was actually matched
// against, plus the requested window.
func (s *Splitter) searchFlexible(ctx context.Context, q Query) RoundTripResult {
	legA := s.outboundLeg(q)
	faultA := s.runLeg(ctx, &legA)

	returnDate, err := deriveReturnDate(legA, q.FlexDays)
	if err != nil {
		result := mergeLegs(legA, Leg{Direction: DirectionReturn}, faultA, nil, false)
		result.Note = ErrNoReturnDate.Error()
		log.Warn().
			Str("origin", q.Origin).
			Str("destination", q.Destination).
			Msg("flexible round trip: no return date could be determined")
		return result
	}

	legB := s.returnLeg(q, returnDate)
	faultB := s.runLeg(ctx, &legB)
	return mergeLegs(legA, legB, faultA, faultB, true)
}

func (s *Splitter) outboundLeg(q Query) Leg {
	return Leg{
		Origin:      q.Origin,
		Destination: q.Destination,
		Date:        q.Date,
		Passengers:  q.Passengers,
		FlexDays:    q.FlexDays,
		Filters:     q.Filters,
		Direction:   DirectionOutbound,
	}
}

func (s *Splitter) returnLeg(q Query, date string) Leg {
	flex := q.FlexDays
	if flex > maxReturnFlexDays {
		flex = maxReturnFlexDays
	}
	return Leg{
		Origin:      q.Destination,
		Destination: q.Origin,
		Date:        date,
		Passengers:  q.Passengers,
		FlexDays:    flex,
		Filters:     q.Filters,
		Direction:   DirectionReturn,
	}
}

// runLeg invokes one directional search and tags its offers. A nil return
// means the leg succeeded; its offer list may still be empty.
func (s *Splitter) runLeg(ctx context.Context, leg *Leg) *contractx.Fault {
	args := map[string]any{
		"origin":      leg.Origin,
		"destination": leg.Destination,
		"date":        leg.Date,
		"passengers":  leg.Passengers,
		"flex_days":   leg.FlexDays,
	}
	if len(leg.Filters) > 0 {
		args["filters"] = leg.Filters
	}

	result := s.invoker.Invoke(ctx, s.searchTool, args)
	if result.Fault != nil {
		return result.Fault
	}

	offers, err := decodeOffers(result.Payload)
	if err != nil {
		return contractx.NewFault(contractx.FaultUnexpected, err.Error()).
			WithSuggestion("The provider returned unusable flight data; please try again later.")
	}
	for i := range offers {
		offers[i].Direction = leg.Direction
	}
	leg.Offers = offers
	return nil
}

// deriveReturnDate reads the date the first outbound offer was matched
// against and adds the requested flexibility window to it.
func deriveReturnDate(legA Leg, flexDays int) (string, error) {
	if len(legA.Offers) == 0 {
		return "", ErrNoReturnDate
	}
	matched := strings.TrimSpace(legA.Offers[0].MatchedDate)
	base, err := time.Parse(dateLayout, matched)
	if err != nil {
		return "", fmt.Errorf("%w: first offer has no usable matched date", ErrNoReturnDate)
	}
	return base.AddDate(0, 0, flexDays).Format(dateLayout), nil
}

// mergeLegs combines the two directional results. Error is raised only when
// both legs failed; a failed or empty return leg alone is a partial result,
// reported through Note and per-leg emptiness.
func mergeLegs(legA, legB Leg, faultA, faultB *contractx.Fault, returnDateKnown bool) RoundTripResult {
	result := RoundTripResult{
		Outbound: legA.Offers,
		Return:   legB.Offers,
	}
	if result.Outbound == nil {
		result.Outbound = []Offer{}
	}
	if result.Return == nil {
		result.Return = []Offer{}
	}

	if faultA != nil {
		result.Faults = append(result.Faults, faultA)
	}
	if faultB != nil {
		result.Faults = append(result.Faults, faultB)
	}

	if faultA != nil && faultB != nil {
		result.Error = true
		result.Note = "both legs failed"
		return result
	}

	if returnDateKnown && len(result.Return) == 0 {
		result.Note = ErrReturnLegEmpty.Error()
	}
	return result
}
