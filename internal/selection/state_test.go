package selection_test

import (
	"encoding/json"
	"testing"

	"github.com/alex-user-go/soltour/internal/selection"
	"github.com/alex-user-go/soltour/internal/snapshot"
)

func raw(t *testing.T, doc string) *snapshot.Raw {
	t.Helper()
	var r snapshot.Raw
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return &r
}

const packageA = `{
	"budgetId": "B1", "hotelCode": "H1", "providerCode": "P1", "availToken": "tok-a",
	"budget": {"price": 1000},
	"hotelInfo": {"name": "Hotel A"},
	"flightData": {"id": "F1", "carrier": "TP"},
	"selectedRooms": [{"description": "Double"}],
	"searchParams": {"num_nights": 7},
	"numRoomsSearched": 1
}`

const packageB = `{
	"budgetId": "B2", "hotelCode": "H2", "providerCode": "P1", "availToken": "tok-b",
	"budget": {"price": 2000},
	"hotelInfo": {"name": "Hotel B"},
	"flightData": {"carrier": "S4"},
	"searchParams": {"num_nights": 10},
	"numRoomsSearched": 2
}`

func TestFromSnapshot(t *testing.T) {
	s := selection.FromSnapshot(raw(t, packageA))

	if len(s.AllUniqueHotels) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(s.AllUniqueHotels))
	}
	if got := s.AllUniqueHotels[0].ID(); got != "B1" {
		t.Errorf("entry ID = %q, want B1", got)
	}
	if _, ok := s.HotelsFromAvailability["H1"]; !ok {
		t.Error("expected hotel H1 in hotelsFromAvailability")
	}
	if _, ok := s.FlightsFromAvailability["F1"]; !ok {
		t.Error("expected flight F1 in flightsFromAvailability")
	}
	if _, ok := s.SelectedRooms["B1"]; !ok {
		t.Error("expected selected rooms for B1")
	}
	if s.AvailToken != "tok-a" {
		t.Errorf("AvailToken = %q, want tok-a", s.AvailToken)
	}
}

func TestFromSnapshot_FlightWithoutID(t *testing.T) {
	s := selection.FromSnapshot(raw(t, packageB))
	if _, ok := s.FlightsFromAvailability["100"]; !ok {
		t.Errorf("expected flight under default key 100, got keys %v", keys(s.FlightsFromAvailability))
	}
}

func TestMerge_DifferentHotelKeepsFirstPackage(t *testing.T) {
	first := selection.Merge(selection.New(), selection.FromSnapshot(raw(t, packageA)))
	merged := selection.Merge(first, selection.FromSnapshot(raw(t, packageB)))

	if len(merged.AllUniqueHotels) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(merged.AllUniqueHotels))
	}
	if merged.AllUniqueHotels[0].ID() != "B1" || merged.AllUniqueHotels[1].ID() != "B2" {
		t.Errorf("unexpected entry order: %q, %q", merged.AllUniqueHotels[0].ID(), merged.AllUniqueHotels[1].ID())
	}
	if string(merged.HotelsFromAvailability["H1"]) != string(first.HotelsFromAvailability["H1"]) {
		t.Errorf("hotel H1 changed: %s", merged.HotelsFromAvailability["H1"])
	}
	if _, ok := merged.HotelsFromAvailability["H2"]; !ok {
		t.Error("expected hotel H2 after merge")
	}
	if _, ok := merged.FlightsFromAvailability["F1"]; !ok {
		t.Error("flight F1 was removed by merge")
	}
	if _, ok := merged.SelectedRooms["B1"]; !ok {
		t.Error("selected rooms of B1 were removed by merge")
	}
	if merged.AvailToken != "tok-b" {
		t.Errorf("AvailToken = %q, want latest tok-b", merged.AvailToken)
	}
	if merged.NumRoomsSearched != 2 {
		t.Errorf("NumRoomsSearched = %d, want 2", merged.NumRoomsSearched)
	}

	// base must not be mutated
	if len(first.AllUniqueHotels) != 1 {
		t.Errorf("base state mutated: %d entries", len(first.AllUniqueHotels))
	}
}

func TestMerge_SameBudgetIsIdempotent(t *testing.T) {
	base := selection.FromSnapshot(raw(t, packageA))

	again := raw(t, packageA)
	again.Budget = json.RawMessage(`{"price": 1}`)
	again.HotelInfo = json.RawMessage(`{"name": "Hotel A (refreshed)"}`)

	merged := selection.Merge(base, selection.FromSnapshot(again))

	if len(merged.AllUniqueHotels) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(merged.AllUniqueHotels))
	}
	if string(merged.AllUniqueHotels[0].Budget) != `{"price": 1000}` {
		t.Errorf("list entry overwritten: %s", merged.AllUniqueHotels[0].Budget)
	}
	if string(merged.HotelsFromAvailability["H1"]) != `{"name": "Hotel A (refreshed)"}` {
		t.Errorf("hotel info not refreshed: %s", merged.HotelsFromAvailability["H1"])
	}
}

func TestMerge_ResultsPageEntries(t *testing.T) {
	// Entries written by the results page carry the budget id inside the budget.
	var base selection.State
	doc := `{
		"availToken": "tok",
		"allUniqueHotels": [{"budget": {"budgetId": "B1", "price": 10}, "hotelCode": "H1", "providerCode": "P1", "details": {}}],
		"hotelsFromAvailability": {"H1": {"name": "Hotel A"}},
		"flightsFromAvailability": {}
	}`
	if err := json.Unmarshal([]byte(doc), &base); err != nil {
		t.Fatalf("decode state: %v", err)
	}

	merged := selection.Merge(base, selection.FromSnapshot(raw(t, packageA)))
	if len(merged.AllUniqueHotels) != 1 {
		t.Errorf("expected duplicate B1 to be skipped, got %d entries", len(merged.AllUniqueHotels))
	}
	if merged.SelectedRooms == nil {
		t.Error("SelectedRooms map should be initialised")
	}
}

func TestReconstruct(t *testing.T) {
	s := selection.Merge(selection.New(), selection.FromSnapshot(raw(t, packageA)))
	s = selection.Merge(s, selection.FromSnapshot(raw(t, packageB)))

	tests := []struct {
		name     string
		budgetID string
		wantOK   bool
	}{
		{name: "first package", budgetID: "B1", wantOK: true},
		{name: "second package", budgetID: "B2", wantOK: true},
		{name: "unknown package", budgetID: "B9", wantOK: false},
		{name: "empty id", budgetID: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := s.Reconstruct(tt.budgetID)
			if ok != tt.wantOK {
				t.Fatalf("Reconstruct(%q) ok = %v, want %v", tt.budgetID, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if string(r.BudgetID) != tt.budgetID {
				t.Errorf("BudgetID = %q, want %q", r.BudgetID, tt.budgetID)
			}
			if !r.Renderable() {
				t.Error("reconstructed snapshot should be renderable")
			}
		})
	}
}

func TestReconstruct_CarriesFlightAndRooms(t *testing.T) {
	s := selection.FromSnapshot(raw(t, packageA))

	r, ok := s.Reconstruct("B1")
	if !ok {
		t.Fatal("expected reconstruction to succeed")
	}
	if !snapshot.Present(r.FlightData) {
		t.Error("expected flight data on reconstructed snapshot")
	}
	if !snapshot.Present(r.SelectedRooms) {
		t.Error("expected selected rooms on reconstructed snapshot")
	}
	if r.AvailToken != "tok-a" {
		t.Errorf("AvailToken = %q, want tok-a", r.AvailToken)
	}
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestState_TolerantDecode(t *testing.T) {
	doc := `{
		"availToken": 12345,
		"numRoomsSearched": "2",
		"allUniqueHotels": [{"budgetId": 7, "hotelCode": 11, "providerCode": "P1", "flightId": 3, "budget": {"price": 10}}],
		"hotelsFromAvailability": {"11": {"name": "Hotel A"}}
	}`

	var s selection.State
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if s.AvailToken != "12345" {
		t.Errorf("AvailToken = %q, want 12345", s.AvailToken)
	}
	if s.NumRoomsSearched != 2 {
		t.Errorf("NumRoomsSearched = %d, want 2", s.NumRoomsSearched)
	}
	r, ok := s.Reconstruct("7")
	if !ok {
		t.Fatal("expected package 7 to be reconstructable")
	}
	if string(r.HotelCode) != "11" || !r.Renderable() {
		t.Errorf("unexpected reconstruction: hotel=%q renderable=%v", r.HotelCode, r.Renderable())
	}
	if s.AllUniqueHotels[0].FlightID != "3" {
		t.Errorf("FlightID = %q, want 3", s.AllUniqueHotels[0].FlightID)
	}
}

func TestState_KeepsUnmodelledKeys(t *testing.T) {
	doc := `{
		"availToken": "tok",
		"totalCount": 42,
		"searchParams": {"origin_code": "OPO"},
		"allUniqueHotels": [
			{"budget": {"budgetId": "B0"}, "hotelCode": "H0", "providerCode": "P1", "flightCode": "X"},
			"legacy-marker"
		],
		"hotelsFromAvailability": {"H0": {"name": "Hotel Zero"}},
		"flightsFromAvailability": ["unexpected"]
	}`

	var base selection.State
	if err := json.Unmarshal([]byte(doc), &base); err != nil {
		t.Fatalf("decode state: %v", err)
	}

	merged := selection.Merge(base, selection.FromSnapshot(raw(t, packageA)))
	data, err := json.Marshal(merged)
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}

	var out struct {
		TotalCount      int                        `json:"totalCount"`
		AllUniqueHotels []json.RawMessage          `json:"allUniqueHotels"`
		Flights         map[string]json.RawMessage `json:"flightsFromAvailability"`
		Hotels          map[string]json.RawMessage `json:"hotelsFromAvailability"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode merged: %v", err)
	}
	if out.TotalCount != 42 {
		t.Errorf("totalCount = %d, want 42", out.TotalCount)
	}
	if len(out.AllUniqueHotels) != 3 {
		t.Fatalf("expected 3 entries, got %d: %s", len(out.AllUniqueHotels), data)
	}

	var first map[string]json.RawMessage
	if err := json.Unmarshal(out.AllUniqueHotels[0], &first); err != nil {
		t.Fatalf("decode first entry: %v", err)
	}
	if string(first["flightCode"]) != `"X"` {
		t.Errorf("flightCode = %s, want \"X\"", first["flightCode"])
	}
	if string(out.AllUniqueHotels[1]) != `"legacy-marker"` {
		t.Errorf("second entry = %s, want it unchanged", out.AllUniqueHotels[1])
	}
	if _, ok := out.Flights["F1"]; !ok {
		t.Errorf("flight F1 missing after merge: %s", data)
	}
	if _, ok := out.Hotels["H0"]; !ok {
		t.Error("hotel H0 removed by merge")
	}
}

func TestMerge_EmptySearchParamsKeepSession(t *testing.T) {
	base := selection.FromSnapshot(raw(t, packageB))

	bare := raw(t, `{"budgetId": "B3", "hotelCode": "H3", "budget": {"price": 1}, "hotelInfo": {"name": "Hotel C"}, "searchParams": {}}`)
	merged := selection.Merge(base, selection.FromSnapshot(bare))

	if string(merged.SearchParams) != `{"num_nights": 10}` {
		t.Errorf("SearchParams = %s, want the session's", merged.SearchParams)
	}
	if merged.NumRoomsSearched != 2 {
		t.Errorf("NumRoomsSearched = %d, want 2", merged.NumRoomsSearched)
	}
	if len(merged.AllUniqueHotels) != 2 {
		t.Errorf("expected 2 entries, got %d", len(merged.AllUniqueHotels))
	}
}
