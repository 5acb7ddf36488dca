package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ErrNotRenderable is returned when a snapshot lacks budget or hotelInfo.
var ErrNotRenderable = errors.New("snapshot is missing budget or hotelInfo")

// defaultFlightID keys flight data that arrives without an id.
const defaultFlightID = "100"

// Raw is a persisted point-in-time packet describing one package.
// Nested documents stay raw so re-serialising never drops upstream fields.
type Raw struct {
	BudgetID         ID              `json:"budgetId"`
	HotelCode        ID              `json:"hotelCode"`
	ProviderCode     ID              `json:"providerCode"`
	AvailToken       string          `json:"availToken"`
	Budget           json.RawMessage `json:"budget,omitempty"`
	HotelInfo        json.RawMessage `json:"hotelInfo,omitempty"`
	FlightData       json.RawMessage `json:"flightData,omitempty"`
	SelectedRooms    json.RawMessage `json:"selectedRooms,omitempty"`
	SelectedRoom     json.RawMessage `json:"selectedRoom,omitempty"`
	NumRoomsSearched *Number         `json:"numRoomsSearched,omitempty"`
	SearchParams     json.RawMessage `json:"searchParams,omitempty"`
}

// Renderable reports whether the snapshot carries both budget and hotelInfo.
func (r *Raw) Renderable() bool {
	return r != nil && Present(r.Budget) && Present(r.HotelInfo)
}

// ForHandoff returns the outgoing snapshot consumed by the quote page.
// Optional collections are defaulted the way the quote page expects them.
func (r *Raw) ForHandoff() *Raw {
	out := *r
	out.Budget = clone(r.Budget)
	out.HotelInfo = clone(r.HotelInfo)
	out.FlightData = clone(r.FlightData)
	out.SelectedRooms = orDefault(r.SelectedRooms, "[]")
	out.SelectedRoom = orDefault(r.SelectedRoom, "null")
	out.SearchParams = orDefault(r.SearchParams, "{}")

	rooms := 1
	if r.NumRoomsSearched != nil && r.NumRoomsSearched.Valid && r.NumRoomsSearched.Value > 0 {
		rooms = int(r.NumRoomsSearched.Value)
	}
	out.NumRoomsSearched = &Number{Value: float64(rooms), Valid: true}
	return &out
}

// FlightID returns the key flight data is indexed by, or "" without flight data.
func (r *Raw) FlightID() string {
	if !Present(r.FlightData) {
		return ""
	}
	var doc struct {
		ID ID `json:"id"`
	}
	_ = json.Unmarshal(r.FlightData, &doc)
	if doc.ID == "" {
		return defaultFlightID
	}
	return string(doc.ID)
}

// Present reports whether a raw document is set and not JSON null.
func Present(m json.RawMessage) bool {
	t := bytes.TrimSpace(m)
	return len(t) > 0 && !bytes.Equal(t, []byte("null"))
}

func clone(m json.RawMessage) json.RawMessage {
	if m == nil {
		return nil
	}
	return append(json.RawMessage(nil), m...)
}

func orDefault(m json.RawMessage, def string) json.RawMessage {
	if Present(m) {
		return clone(m)
	}
	return json.RawMessage(def)
}

// ID is an upstream identifier that may arrive as a JSON string or number.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	if bytes.Equal(t, []byte("null")) {
		*id = ""
		return nil
	}
	if len(t) > 0 && t[0] == '"' {
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(t, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Number is a numeric field some upstream variants send as a string.
// Values that cannot be parsed decode as absent rather than failing.
type Number struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*n = Number{}
		return nil
	}
	*n = Number{Value: v, Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

// Or returns the value, or def when the number is absent.
func (n Number) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Value
}
