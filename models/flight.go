package models

import (
	"cmp"
	"slices"
)

// Flight represents a scheduled flight. Purchased tickets are stored as
// Flight values copied out of the catalog at purchase time.
type Flight struct {
	Number           string  `json:"number"`
	Airline          string  `json:"airline"`
	DepartureTime    string  `json:"departureTime"`
	ArrivalTime      string  `json:"arrivalTime"`
	DepartureAirport string  `json:"departureAirport"`
	ArrivalAirport   string  `json:"arrivalAirport"`
	Status           string  `json:"status"`
	Price            float64 `json:"price"`
}

// Known flight states. The set is open: any other text is stored as-is.
const (
	FlightStatusOnTime    = "on-time"
	FlightStatusDelayed   = "delayed"
	FlightStatusCancelled = "cancelled"
)

// Historical status values found in older data files.
const (
	FlightStatusOnTimeZH    = "准点"
	FlightStatusDelayedZH   = "延误"
	FlightStatusCancelledZH = "取消"
)

// FlightField names an editable flight attribute.
type FlightField string

const (
	FieldAirline          FlightField = "airline"
	FieldDepartureTime    FlightField = "departure_time"
	FieldArrivalTime      FlightField = "arrival_time"
	FieldDepartureAirport FlightField = "departure_airport"
	FieldArrivalAirport   FlightField = "arrival_airport"
	FieldStatus           FlightField = "status"
	FieldPrice            FlightField = "price"
)

// EditableFields lists the fields in menu order.
var EditableFields = []FlightField{
	FieldAirline,
	FieldDepartureTime,
	FieldArrivalTime,
	FieldDepartureAirport,
	FieldArrivalAirport,
	FieldStatus,
	FieldPrice,
}

// Flights is an ordered collection of flights.
type Flights []Flight

// Find returns the first flight with the given number.
func (fs Flights) Find(number string) (Flight, bool) {
	i := fs.Index(number)
	if i < 0 {
		return Flight{}, false
	}
	return fs[i], true
}

// Index returns the position of the first flight with the given number, or -1.
func (fs Flights) Index(number string) int {
	for i := range fs {
		if fs[i].Number == number {
			return i
		}
	}
	return -1
}

// Clone returns an independent copy.
func (fs Flights) Clone() Flights {
	if fs == nil {
		return nil
	}
	out := make(Flights, len(fs))
	copy(out, fs)
	return out
}

// Comparator orders two flights like cmp.Compare.
type Comparator func(a, b Flight) int

// ByDepartureTime orders flights by departure time, compared as text.
func ByDepartureTime(a, b Flight) int {
	return cmp.Compare(a.DepartureTime, b.DepartureTime)
}

// ByPrice orders flights by ascending price.
func ByPrice(a, b Flight) int {
	return cmp.Compare(a.Price, b.Price)
}

// SortBy sorts in place. Flights with equal keys keep their relative order.
func (fs Flights) SortBy(compare Comparator) {
	slices.SortStableFunc(fs, compare)
}
