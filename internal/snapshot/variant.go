package snapshot

import (
	"encoding/json"
	"fmt"
)

// Variant tags the upstream payload shape a snapshot was written in.
type Variant int

const (
	// VariantLegacy carries images under hotelInfo.images and a flat budget.price.
	VariantLegacy Variant = iota + 1
	// VariantBreakdown carries images under hotelInfo.multimedias and the total
	// under budget.priceBreakdown.total.
	VariantBreakdown
)

func (v Variant) String() string {
	switch v {
	case VariantLegacy:
		return "legacy"
	case VariantBreakdown:
		return "breakdown"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(b []byte) error {
	switch string(b) {
	case "legacy":
		*v = VariantLegacy
	case "breakdown":
		*v = VariantBreakdown
	case "unknown", "":
		*v = 0
	default:
		return fmt.Errorf("unknown variant %q", b)
	}
	return nil
}

// Detect picks the variant from the structure of the budget and hotel documents.
func Detect(r *Raw) Variant {
	if hasKey(r.Budget, "priceBreakdown") || hasKey(r.HotelInfo, "multimedias") {
		return VariantBreakdown
	}
	return VariantLegacy
}

// adapter reads the variant-specific fields of the upstream documents. Each
// variant reads its own field names first and falls back to the other
// variant's, since the results page sometimes mixes the two shapes.
type adapter interface {
	images(h hotelDoc) []Image
	total(b budgetDoc) float64
}

func adapterFor(v Variant) adapter {
	if v == VariantBreakdown {
		return breakdownAdapter{}
	}
	return legacyAdapter{}
}

type legacyAdapter struct{}

func (legacyAdapter) images(h hotelDoc) []Image {
	return firstImages(h.Images, h.Multimedias)
}

func (legacyAdapter) total(b budgetDoc) float64 {
	return firstPrice(b.Price, b.breakdownTotal(), b.TotalPrice)
}

type breakdownAdapter struct{}

func (breakdownAdapter) images(h hotelDoc) []Image {
	return firstImages(h.Multimedias, h.Images)
}

func (breakdownAdapter) total(b budgetDoc) float64 {
	return firstPrice(b.breakdownTotal(), b.Price, b.TotalPrice)
}

// firstImages returns the first non-empty image list.
func firstImages(lists ...[]Image) []Image {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

// firstPrice returns the first present, non-zero price, or 0.
func firstPrice(prices ...Number) float64 {
	for _, p := range prices {
		if p.Valid && p.Value != 0 {
			return p.Value
		}
	}
	return 0
}

type budgetDoc struct {
	HotelName      string          `json:"hotelName"`
	Price          Number          `json:"price"`
	TotalPrice     Number          `json:"totalPrice"`
	PriceBreakdown *priceBreakdown `json:"priceBreakdown"`
	NumPax         Number          `json:"numPax"`
	HotelServices  []hotelService  `json:"hotelServices"`
}

type priceBreakdown struct {
	Total Number `json:"total"`
}

func (b budgetDoc) breakdownTotal() Number {
	if b.PriceBreakdown == nil {
		return Number{}
	}
	return b.PriceBreakdown.Total
}

type hotelService struct {
	StartDate       string   `json:"startDate"`
	EndDate         string   `json:"endDate"`
	MealPlan        MealPlan `json:"mealPlan"`
	RoomDescription string   `json:"roomDescription"`
}

type hotelDoc struct {
	Name                   string  `json:"name"`
	DestinationCode        string  `json:"destinationCode"`
	DestinationDescription string  `json:"destinationDescription"`
	CategoryCode           string  `json:"categoryCode"`
	Images                 []Image `json:"images"`
	Multimedias            []Image `json:"multimedias"`
}

type searchDoc struct {
	OriginCode string `json:"origin_code"`
	NumNights  Number `json:"num_nights"`
}

type roomDoc struct {
	Description string `json:"description"`
}

// Image is an image reference sent either as a bare URL or as {"url": ...}.
type Image string

// UnmarshalJSON implements json.Unmarshaler. Unknown shapes decode as empty.
func (i *Image) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*i = Image(s)
		return nil
	}
	var obj struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(b, &obj)
	*i = Image(obj.URL)
	return nil
}

// MealPlan is sent either as {"code","description"} or as a plain string.
type MealPlan struct {
	Code        string
	Description string
}

// UnmarshalJSON implements json.Unmarshaler. Unknown shapes decode as empty.
func (m *MealPlan) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*m = MealPlan{Description: s}
		return nil
	}
	var obj struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	}
	_ = json.Unmarshal(b, &obj)
	*m = MealPlan{Code: obj.Code, Description: obj.Description}
	return nil
}

func (m MealPlan) String() string {
	if m.Description != "" {
		return m.Description
	}
	return m.Code
}

func hasKey(doc json.RawMessage, key string) bool {
	if !Present(doc) {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return false
	}
	v, ok := fields[key]
	return ok && Present(v)
}

// decode fills v as far as the document allows. Type mismatches on individual
// fields are skipped by encoding/json, so a partially odd document still yields
// every well-formed field.
func decode(doc json.RawMessage, v any) {
	if !Present(doc) {
		return
	}
	_ = json.Unmarshal(doc, v)
}
