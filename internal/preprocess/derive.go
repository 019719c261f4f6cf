package preprocess

import "math"

// Derived features computed from raw booking fields. A derivation
// activates at fit time only when all of its base columns are configured
// features, so the serving path can always recompute it from a request.
const (
	colTotalNights    = "total_nights"
	colTotalGuests    = "total_guests"
	colPricePerPerson = "price_per_person"
	colLeadTimeBucket = "lead_time_bucket"
	colArrivalSeason  = "arrival_season"
)

type derivation struct {
	Name  string   `json:"name"`
	Bases []string `json:"bases"`
}

var allDerivations = []derivation{
	{Name: colTotalNights, Bases: []string{"no_of_weekend_nights", "no_of_week_nights"}},
	{Name: colTotalGuests, Bases: []string{"no_of_adults", "no_of_children"}},
	{Name: colPricePerPerson, Bases: []string{"avg_price_per_room", "no_of_adults", "no_of_children"}},
	{Name: colLeadTimeBucket, Bases: []string{"lead_time"}},
	{Name: colArrivalSeason, Bases: []string{"arrival_month"}},
}

func (d derivation) compute(row map[string]float64) float64 {
	switch d.Name {
	case colTotalNights:
		return row["no_of_weekend_nights"] + row["no_of_week_nights"]
	case colTotalGuests:
		return row["no_of_adults"] + row["no_of_children"]
	case colPricePerPerson:
		guests := row["no_of_adults"] + row["no_of_children"]
		if guests < 1 {
			guests = 1
		}
		return row["avg_price_per_room"] / guests
	case colLeadTimeBucket:
		return leadTimeBucket(row["lead_time"])
	case colArrivalSeason:
		return arrivalSeason(row["arrival_month"])
	default:
		return math.NaN()
	}
}

// leadTimeBucket bins days-ahead into 0..4: same week, within a month,
// within a quarter, within half a year, beyond.
func leadTimeBucket(days float64) float64 {
	switch {
	case days <= 7:
		return 0
	case days <= 30:
		return 1
	case days <= 90:
		return 2
	case days <= 180:
		return 3
	default:
		return 4
	}
}

// arrivalSeason maps month 1..12 to 0..3 (winter, spring, summer, autumn).
func arrivalSeason(month float64) float64 {
	m := int(month)
	switch {
	case m == 12 || m == 1 || m == 2:
		return 0
	case m >= 3 && m <= 5:
		return 1
	case m >= 6 && m <= 8:
		return 2
	case m >= 9 && m <= 11:
		return 3
	default:
		return 0
	}
}
