package snapshot

import (
	"strings"
	"time"
)

const (
	// MaxImages caps the image list handed to the gallery.
	MaxImages = 10
	// DefaultNumPax applies when the budget does not state a party size.
	DefaultNumPax = 2
	// DefaultNights applies when the search parameters do not state a duration.
	DefaultNights = 7

	defaultHotelName = "Hotel"
	maxStars         = 5
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Package is the canonical view of a single travel package.
type Package struct {
	Variant         Variant    `json:"variant"`
	BudgetID        string     `json:"budget_id"`
	HotelCode       string     `json:"hotel_code"`
	ProviderCode    string     `json:"provider_code"`
	HotelName       string     `json:"hotel_name"`
	Stars           int        `json:"stars"`
	Country         string     `json:"country"`
	City            string     `json:"city"`
	OriginCity      string     `json:"origin_city"`
	Images          []string   `json:"images"`
	SearchNights    int        `json:"search_nights"`
	DateRange       *DateRange `json:"date_range,omitempty"`
	MealPlan        string     `json:"meal_plan"`
	PriceTotal      float64    `json:"price_total"`
	RoomDescription string     `json:"room_description"`
	GuestCount      int        `json:"guest_count"`
}

// DateRange is the hotel service stay, present only when both ends are known.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Normalize maps a raw snapshot onto the canonical package view. It fails only
// for snapshots that are not renderable; absent optional fields resolve to
// zero values.
func Normalize(r *Raw) (Package, error) {
	if !r.Renderable() {
		return Package{}, ErrNotRenderable
	}

	variant := Detect(r)
	ad := adapterFor(variant)

	var (
		budget budgetDoc
		hotel  hotelDoc
		search searchDoc
	)
	decode(r.Budget, &budget)
	decode(r.HotelInfo, &hotel)
	decode(r.SearchParams, &search)

	var service hotelService
	if len(budget.HotelServices) > 0 {
		service = budget.HotelServices[0]
	}

	country, city := resolveDestination(hotel.DestinationCode, hotel.DestinationDescription)

	return Package{
		Variant:         variant,
		BudgetID:        string(r.BudgetID),
		HotelCode:       string(r.HotelCode),
		ProviderCode:    string(r.ProviderCode),
		HotelName:       hotelName(hotel, budget),
		Stars:           stars(hotel.CategoryCode),
		Country:         country,
		City:            city,
		OriginCity:      resolveOrigin(search.OriginCode),
		Images:          imageURLs(ad.images(hotel)),
		SearchNights:    max(0, int(search.NumNights.Or(DefaultNights))),
		DateRange:       stay(service),
		MealPlan:        strings.TrimSpace(service.MealPlan.String()),
		PriceTotal:      ad.total(budget),
		RoomDescription: roomDescription(r, service),
		GuestCount:      int(budget.NumPax.Or(DefaultNumPax)),
	}, nil
}

func hotelName(h hotelDoc, b budgetDoc) string {
	if name := strings.TrimSpace(h.Name); name != "" {
		return name
	}
	if name := strings.TrimSpace(b.HotelName); name != "" {
		return name
	}
	return defaultHotelName
}

func stars(categoryCode string) int {
	return min(strings.Count(categoryCode, "*"), maxStars)
}

func imageURLs(images []Image) []string {
	out := make([]string, 0, min(len(images), MaxImages))
	for _, img := range images {
		if len(out) == MaxImages {
			break
		}
		if u := strings.TrimSpace(string(img)); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func stay(s hotelService) *DateRange {
	start, ok := parseDate(s.StartDate)
	if !ok {
		return nil
	}
	end, ok := parseDate(s.EndDate)
	if !ok {
		return nil
	}
	return &DateRange{Start: start, End: end}
}

func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func roomDescription(r *Raw, s hotelService) string {
	var rooms []roomDoc
	decode(r.SelectedRooms, &rooms)
	for _, room := range rooms {
		if d := strings.TrimSpace(room.Description); d != "" {
			return d
		}
	}

	var room roomDoc
	decode(r.SelectedRoom, &room)
	if d := strings.TrimSpace(room.Description); d != "" {
		return d
	}
	return strings.TrimSpace(s.RoomDescription)
}
