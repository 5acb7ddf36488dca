package view

import (
	"math"
	"strings"
	"time"

	"github.com/alex-user-go/soltour/internal/snapshot"
)

// Model is the display-ready view of a package.
type Model struct {
	snapshot.Package

	Nights             int     `json:"nights"`
	PricePerPerson     float64 `json:"price_per_person"`
	Location           string  `json:"location"`
	DatesText          string  `json:"dates_text"`
	PricePerPersonText string  `json:"price_per_person_text"`
	PriceTotalText     string  `json:"price_total_text"`
}

// Builder derives computed display fields from a normalized package.
type Builder struct {
	decimals int
}

// NewBuilder creates a Builder that formats prices with the given number of decimals.
func NewBuilder(decimals int) *Builder {
	return &Builder{decimals: max(decimals, 0)}
}

// Build derives the view model.
func (b *Builder) Build(pkg snapshot.Package) Model {
	perPerson := PerPerson(pkg.PriceTotal, pkg.GuestCount)

	return Model{
		Package:            pkg,
		Nights:             Nights(pkg),
		PricePerPerson:     perPerson,
		Location:           location(pkg.City, pkg.Country),
		DatesText:          FormatDateRange(pkg.DateRange),
		PricePerPersonText: FormatPrice(perPerson, b.decimals) + "€",
		PriceTotalText:     FormatPrice(pkg.PriceTotal, b.decimals) + "€",
	}
}

// Nights returns the stay length. Stay dates, when both are known, take
// precedence over the searched duration.
func Nights(pkg snapshot.Package) int {
	if pkg.DateRange == nil {
		return pkg.SearchNights
	}
	days := pkg.DateRange.End.Sub(pkg.DateRange.Start).Hours() / 24
	return max(int(math.Round(days)), 0)
}

// PerPerson splits the total across the party. Non-positive party sizes leave
// the total unchanged.
func PerPerson(total float64, numPax int) float64 {
	if numPax > 0 {
		return total / float64(numPax)
	}
	return total
}

func location(city, country string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{city, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

var monthsPT = [12]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"}

// FormatDate renders a date as "<day> <Mmm> <yyyy>" with Portuguese month names.
func FormatDate(t time.Time) string {
	return itoa(t.Day()) + " " + monthsPT[t.Month()-1] + " " + itoa(t.Year())
}

// FormatDateRange renders both ends of a stay, or "" when the stay is unknown.
func FormatDateRange(r *snapshot.DateRange) string {
	if r == nil {
		return ""
	}
	return FormatDate(r.Start) + " - " + FormatDate(r.End)
}
