// Package codec converts flights and accounts to and from the fixed-size
// binary records used by the catalog, ledger and account files.
//
// Flight record (88 bytes):
//
//	0   number[10]
//	10  airline[20]
//	30  departure_time[10]
//	40  arrival_time[10]
//	50  departure_airport[10]
//	60  arrival_airport[10]
//	70  status[10]
//	80  price float64
//
// Account record (64 bytes):
//
//	0   username[20]
//	20  password[20]
//	40  role int32
//	44  padding[4]
//	48  balance float64
//	56  reserved[8]
//
// Text slots hold at most N-1 bytes followed by NUL padding. Numbers are
// little-endian; floats are IEEE-754.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/models"
)

// Slot widths in bytes, including the terminating NUL.
const (
	NumberWidth   = 10
	AirlineWidth  = 20
	TimeWidth     = 10
	AirportWidth  = 10
	StatusWidth   = 10
	UsernameWidth = 20
	PasswordWidth = 20
)

const (
	FlightRecordSize  = 88
	AccountRecordSize = 64
)

type slot struct {
	name  string
	width int
	get   func(*models.Flight) *string
}

var flightSlots = []slot{
	{"number", NumberWidth, func(f *models.Flight) *string { return &f.Number }},
	{"airline", AirlineWidth, func(f *models.Flight) *string { return &f.Airline }},
	{"departure_time", TimeWidth, func(f *models.Flight) *string { return &f.DepartureTime }},
	{"arrival_time", TimeWidth, func(f *models.Flight) *string { return &f.ArrivalTime }},
	{"departure_airport", AirportWidth, func(f *models.Flight) *string { return &f.DepartureAirport }},
	{"arrival_airport", AirportWidth, func(f *models.Flight) *string { return &f.ArrivalAirport }},
	{"status", StatusWidth, func(f *models.Flight) *string { return &f.Status }},
}

const flightPriceOffset = 80

// FieldWidth returns the slot width of an editable flight field, or 0 for
// numeric fields.
func FieldWidth(field models.FlightField) int {
	for _, s := range flightSlots {
		if s.name == string(field) {
			return s.width
		}
	}
	return 0
}

// ValidateFlight checks that every field fits its slot and the price is a
// non-negative finite number.
func ValidateFlight(f models.Flight) error {
	for _, s := range flightSlots {
		if err := checkText(s.name, *s.get(&f), s.width); err != nil {
			return err
		}
	}
	if f.Number == "" {
		return fmt.Errorf("flight number is required: %w", database.ErrInvalidInput)
	}
	return checkPrice(f.Price)
}

// EncodeFlight serializes f into a FlightRecordSize block.
func EncodeFlight(f models.Flight) ([]byte, error) {
	if err := ValidateFlight(f); err != nil {
		return nil, err
	}
	block := make([]byte, FlightRecordSize)
	offset := 0
	for _, s := range flightSlots {
		copy(block[offset:offset+s.width], *s.get(&f))
		offset += s.width
	}
	binary.LittleEndian.PutUint64(block[flightPriceOffset:], math.Float64bits(f.Price))
	return block, nil
}

// DecodeFlight parses a FlightRecordSize block.
func DecodeFlight(block []byte) (models.Flight, error) {
	var f models.Flight
	if len(block) != FlightRecordSize {
		return f, fmt.Errorf("flight record is %d bytes, want %d: %w",
			len(block), FlightRecordSize, database.ErrCorruptStore)
	}
	offset := 0
	for _, s := range flightSlots {
		text, err := readText(s.name, block[offset:offset+s.width])
		if err != nil {
			return models.Flight{}, err
		}
		*s.get(&f) = text
		offset += s.width
	}
	f.Price = math.Float64frombits(binary.LittleEndian.Uint64(block[flightPriceOffset:]))
	if math.IsNaN(f.Price) || math.IsInf(f.Price, 0) || f.Price < 0 {
		return models.Flight{}, fmt.Errorf("flight %s has price %v: %w",
			f.Number, f.Price, database.ErrCorruptStore)
	}
	return f, nil
}

// EncodeAccount serializes a into an AccountRecordSize block.
func EncodeAccount(a models.Account) ([]byte, error) {
	if a.Username == "" {
		return nil, fmt.Errorf("username is required: %w", database.ErrInvalidInput)
	}
	if err := checkText("username", a.Username, UsernameWidth); err != nil {
		return nil, err
	}
	if err := checkText("password", a.Password, PasswordWidth); err != nil {
		return nil, err
	}
	if !a.Role.Valid() {
		return nil, fmt.Errorf("role %d: %w", a.Role, database.ErrInvalidInput)
	}
	if math.IsNaN(a.Balance) || math.IsInf(a.Balance, 0) {
		return nil, fmt.Errorf("balance %v: %w", a.Balance, database.ErrInvalidInput)
	}

	block := make([]byte, AccountRecordSize)
	copy(block[0:20], a.Username)
	copy(block[20:40], a.Password)
	binary.LittleEndian.PutUint32(block[40:44], uint32(a.Role))
	binary.LittleEndian.PutUint64(block[48:56], math.Float64bits(a.Balance))
	return block, nil
}

// DecodeAccount parses an AccountRecordSize block.
func DecodeAccount(block []byte) (models.Account, error) {
	var a models.Account
	if len(block) != AccountRecordSize {
		return a, fmt.Errorf("account record is %d bytes, want %d: %w",
			len(block), AccountRecordSize, database.ErrCorruptStore)
	}
	var err error
	if a.Username, err = readText("username", block[0:20]); err != nil {
		return models.Account{}, err
	}
	if a.Password, err = readText("password", block[20:40]); err != nil {
		return models.Account{}, err
	}
	a.Role = models.Role(int32(binary.LittleEndian.Uint32(block[40:44])))
	if !a.Role.Valid() {
		return models.Account{}, fmt.Errorf("account %s has role %d: %w",
			a.Username, a.Role, database.ErrCorruptStore)
	}
	a.Balance = math.Float64frombits(binary.LittleEndian.Uint64(block[48:56]))
	if math.IsNaN(a.Balance) || math.IsInf(a.Balance, 0) {
		return models.Account{}, fmt.Errorf("account %s has balance %v: %w",
			a.Username, a.Balance, database.ErrCorruptStore)
	}
	return a, nil
}

// Truncate shortens s to fit a slot of the given width: at most width-1
// bytes, cut back to a UTF-8 character boundary. Bytes that are not valid
// UTF-8 are dropped first.
func Truncate(s string, width int) string {
	s = strings.ToValidUTF8(s, "")
	limit := width - 1
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// TruncateFlight applies Truncate to every text field of f.
func TruncateFlight(f models.Flight) models.Flight {
	for _, s := range flightSlots {
		p := s.get(&f)
		*p = Truncate(*p, s.width)
	}
	return f
}

func checkText(name, value string, width int) error {
	if len(value) > width-1 {
		return fmt.Errorf("%s %q is %d bytes, limit is %d: %w",
			name, value, len(value), width-1, database.ErrInvalidInput)
	}
	if bytes.IndexByte([]byte(value), 0) >= 0 {
		return fmt.Errorf("%s contains a NUL byte: %w", name, database.ErrInvalidInput)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("%s is not valid UTF-8: %w", name, database.ErrInvalidInput)
	}
	return nil
}

func checkPrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return fmt.Errorf("price %v must be a non-negative number: %w", price, database.ErrInvalidInput)
	}
	return nil
}

func readText(name string, b []byte) (string, error) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%s is not valid UTF-8: %w", name, database.ErrCorruptStore)
	}
	return string(b), nil
}
