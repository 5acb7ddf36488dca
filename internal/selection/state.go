package selection

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"

	"github.com/alex-user-go/soltour/internal/snapshot"
)

// State is the tab-scoped context accumulating every package, hotel and
// flight the user selected while browsing. Keys the results page stores beyond
// the ones modelled here are kept and written back unchanged.
type State struct {
	AvailToken              string
	AllUniqueHotels         []Entry
	HotelsFromAvailability  map[string]json.RawMessage
	FlightsFromAvailability map[string]json.RawMessage
	SelectedRooms           map[string]json.RawMessage
	SearchParams            json.RawMessage
	NumRoomsSearched        int

	extra map[string]json.RawMessage
}

const (
	keyAvailToken       = "availToken"
	keyAllUniqueHotels  = "allUniqueHotels"
	keyHotels           = "hotelsFromAvailability"
	keyFlights          = "flightsFromAvailability"
	keySelectedRooms    = "selectedRoomsByBudget"
	keySearchParams     = "searchParams"
	keyNumRoomsSearched = "numRoomsSearched"
)

// UnmarshalJSON decodes a stored context. Known keys with an unexpected type
// are kept verbatim rather than failing the whole document, so only a
// payload that is not a JSON object is rejected.
func (s *State) UnmarshalJSON(b []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}

	out := New()
	keep := func(k string, v json.RawMessage) {
		if out.extra == nil {
			out.extra = map[string]json.RawMessage{}
		}
		out.extra[k] = v
	}

	for k, v := range doc {
		switch k {
		case keyAvailToken:
			var id snapshot.ID
			if json.Unmarshal(v, &id) != nil {
				keep(k, v)
				continue
			}
			out.AvailToken = string(id)
		case keyAllUniqueHotels:
			var entries []Entry
			if json.Unmarshal(v, &entries) != nil {
				keep(k, v)
				continue
			}
			if entries != nil {
				out.AllUniqueHotels = entries
			}
		case keyHotels:
			if !decodeMap(v, out.HotelsFromAvailability) {
				keep(k, v)
			}
		case keyFlights:
			if !decodeMap(v, out.FlightsFromAvailability) {
				keep(k, v)
			}
		case keySelectedRooms:
			if !decodeMap(v, out.SelectedRooms) {
				keep(k, v)
			}
		case keySearchParams:
			if !snapshot.Present(v) {
				keep(k, v)
				continue
			}
			out.SearchParams = v
		case keyNumRoomsSearched:
			var n snapshot.Number
			_ = json.Unmarshal(v, &n)
			if !n.Valid {
				keep(k, v)
				continue
			}
			out.NumRoomsSearched = int(n.Value)
		default:
			keep(k, v)
		}
	}

	*s = out
	return nil
}

// MarshalJSON writes the modelled keys over the kept ones. A known key that
// was kept verbatim is only replaced once it holds a value.
func (s State) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.extra)+7)
	for k, v := range s.extra {
		out[k] = v
	}
	set := func(k string, v any, empty bool) {
		if _, kept := out[k]; kept && empty {
			return
		}
		out[k] = v
	}

	set(keyAvailToken, s.AvailToken, s.AvailToken == "")
	set(keyAllUniqueHotels, orEmpty(s.AllUniqueHotels), len(s.AllUniqueHotels) == 0)
	set(keyHotels, orEmptyMap(s.HotelsFromAvailability), len(s.HotelsFromAvailability) == 0)
	set(keyFlights, orEmptyMap(s.FlightsFromAvailability), len(s.FlightsFromAvailability) == 0)
	set(keySelectedRooms, orEmptyMap(s.SelectedRooms), len(s.SelectedRooms) == 0)
	if snapshot.Present(s.SearchParams) {
		out[keySearchParams] = s.SearchParams
	}
	set(keyNumRoomsSearched, s.NumRoomsSearched, s.NumRoomsSearched == 0)
	return json.Marshal(out)
}

// Entry is one selected package in the list, unique by budget id.
type Entry struct {
	BudgetID     snapshot.ID
	Budget       json.RawMessage
	HotelCode    snapshot.ID
	ProviderCode snapshot.ID
	FlightID     string
	Details      json.RawMessage

	extra map[string]json.RawMessage
	// raw holds an element that is not an object; it is written back as is.
	raw json.RawMessage
}

// UnmarshalJSON decodes a package entry, keeping keys it does not model.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil || doc == nil {
		*e = Entry{raw: append(json.RawMessage(nil), b...)}
		return nil
	}

	var out Entry
	for k, v := range doc {
		var err error
		switch k {
		case "budgetId":
			err = json.Unmarshal(v, &out.BudgetID)
		case "budget":
			out.Budget = v
		case "hotelCode":
			err = json.Unmarshal(v, &out.HotelCode)
		case "providerCode":
			err = json.Unmarshal(v, &out.ProviderCode)
		case "flightId":
			var id snapshot.ID
			if err = json.Unmarshal(v, &id); err == nil {
				out.FlightID = string(id)
			}
		case "details":
			out.Details = v
		default:
			err = errUnmodelled
		}
		if err != nil {
			if out.extra == nil {
				out.extra = map[string]json.RawMessage{}
			}
			out.extra[k] = v
		}
	}

	*e = out
	return nil
}

// MarshalJSON writes the entry back with every kept key.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.raw != nil {
		return e.raw, nil
	}

	out := make(map[string]any, len(e.extra)+6)
	for k, v := range e.extra {
		out[k] = v
	}
	if e.BudgetID != "" {
		out["budgetId"] = e.BudgetID
	}
	out["budget"] = e.Budget
	if _, kept := out["hotelCode"]; !kept || e.HotelCode != "" {
		out["hotelCode"] = e.HotelCode
	}
	if _, kept := out["providerCode"]; !kept || e.ProviderCode != "" {
		out["providerCode"] = e.ProviderCode
	}
	if e.FlightID != "" {
		out["flightId"] = e.FlightID
	}
	if e.Details != nil {
		out["details"] = e.Details
	}
	return json.Marshal(out)
}

var errUnmodelled = errors.New("unmodelled key")

// ID returns the entry's budget id. Entries written by the results page carry
// it only inside the budget document.
func (e Entry) ID() string {
	if e.BudgetID != "" {
		return string(e.BudgetID)
	}
	var doc struct {
		BudgetID snapshot.ID `json:"budgetId"`
	}
	if snapshot.Present(e.Budget) {
		_ = json.Unmarshal(e.Budget, &doc)
	}
	return string(doc.BudgetID)
}

func decodeMap(v json.RawMessage, into map[string]json.RawMessage) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(v, &m); err != nil {
		return false
	}
	maps.Copy(into, m)
	return true
}

func orEmpty(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	return entries
}

func orEmptyMap(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return map[string]json.RawMessage{}
	}
	return m
}

// New returns an empty state with initialised maps.
func New() State {
	return State{
		AllUniqueHotels:         []Entry{},
		HotelsFromAvailability:  map[string]json.RawMessage{},
		FlightsFromAvailability: map[string]json.RawMessage{},
		SelectedRooms:           map[string]json.RawMessage{},
	}
}

// FromSnapshot builds the single-package state contributed by a handoff.
func FromSnapshot(r *snapshot.Raw) State {
	s := New()
	s.AvailToken = r.AvailToken
	s.SearchParams = r.SearchParams
	if r.NumRoomsSearched != nil && r.NumRoomsSearched.Valid {
		s.NumRoomsSearched = int(r.NumRoomsSearched.Value)
	}

	flightID := r.FlightID()
	s.AllUniqueHotels = append(s.AllUniqueHotels, Entry{
		BudgetID:     r.BudgetID,
		Budget:       r.Budget,
		HotelCode:    r.HotelCode,
		ProviderCode: r.ProviderCode,
		FlightID:     flightID,
		Details:      json.RawMessage("{}"),
	})
	if r.HotelCode != "" && snapshot.Present(r.HotelInfo) {
		s.HotelsFromAvailability[string(r.HotelCode)] = r.HotelInfo
	}
	if flightID != "" {
		s.FlightsFromAvailability[flightID] = r.FlightData
	}
	if r.BudgetID != "" && snapshot.Present(r.SelectedRooms) {
		s.SelectedRooms[string(r.BudgetID)] = r.SelectedRooms
	}
	return s
}

// Merge returns the union of base and in. It never removes anything from base:
// package entries are first-write-wins by budget id, while hotel, flight and
// room maps take in's values for the keys in carries. Session scalars take in's
// value when set; empty search parameters do not count as set. Keys the
// results page stored beyond the modelled ones are kept.
func Merge(base, in State) State {
	out := State{
		AvailToken:              base.AvailToken,
		AllUniqueHotels:         slices.Clone(base.AllUniqueHotels),
		HotelsFromAvailability:  merged(base.HotelsFromAvailability, in.HotelsFromAvailability),
		FlightsFromAvailability: merged(base.FlightsFromAvailability, in.FlightsFromAvailability),
		SelectedRooms:           merged(base.SelectedRooms, in.SelectedRooms),
		SearchParams:            base.SearchParams,
		NumRoomsSearched:        base.NumRoomsSearched,
		extra:                   mergedExtra(base.extra, in.extra),
	}
	if out.AllUniqueHotels == nil {
		out.AllUniqueHotels = []Entry{}
	}

	seen := make(map[string]bool, len(out.AllUniqueHotels))
	for _, e := range out.AllUniqueHotels {
		seen[e.ID()] = true
	}
	for _, e := range in.AllUniqueHotels {
		id := e.ID()
		if id != "" && seen[id] {
			continue
		}
		seen[id] = true
		out.AllUniqueHotels = append(out.AllUniqueHotels, e)
	}

	if in.AvailToken != "" {
		out.AvailToken = in.AvailToken
	}
	if hasParams(in.SearchParams) {
		out.SearchParams = in.SearchParams
	}
	if in.NumRoomsSearched > 0 {
		out.NumRoomsSearched = in.NumRoomsSearched
	}
	return out
}

func merged(base, in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(base)+len(in))
	maps.Copy(out, base)
	maps.Copy(out, in)
	return out
}

func mergedExtra(base, in map[string]json.RawMessage) map[string]json.RawMessage {
	if len(base) == 0 && len(in) == 0 {
		return nil
	}
	return merged(base, in)
}

// hasParams reports whether search parameters carry at least one key. An empty
// object is what a snapshot without parameters defaults to.
func hasParams(m json.RawMessage) bool {
	if !snapshot.Present(m) {
		return false
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(m, &doc); err != nil {
		return true
	}
	return len(doc) > 0
}

// Find returns the package entry for budgetID.
func (s State) Find(budgetID string) (Entry, bool) {
	if budgetID == "" {
		return Entry{}, false
	}
	for _, e := range s.AllUniqueHotels {
		if e.ID() == budgetID {
			return e, true
		}
	}
	return Entry{}, false
}

// Reconstruct rebuilds the snapshot of a previously selected package. It
// succeeds iff budgetID is in the package list.
func (s State) Reconstruct(budgetID string) (*snapshot.Raw, bool) {
	e, ok := s.Find(budgetID)
	if !ok {
		return nil, false
	}

	r := &snapshot.Raw{
		BudgetID:     snapshot.ID(budgetID),
		HotelCode:    e.HotelCode,
		ProviderCode: e.ProviderCode,
		AvailToken:   s.AvailToken,
		Budget:       e.Budget,
		HotelInfo:    s.HotelsFromAvailability[string(e.HotelCode)],
		SearchParams: s.SearchParams,
	}
	if e.FlightID != "" {
		r.FlightData = s.FlightsFromAvailability[e.FlightID]
	}
	if rooms, ok := s.SelectedRooms[budgetID]; ok {
		r.SelectedRooms = rooms
	}
	if s.NumRoomsSearched > 0 {
		r.NumRoomsSearched = &snapshot.Number{Value: float64(s.NumRoomsSearched), Valid: true}
	}
	return r, true
}
