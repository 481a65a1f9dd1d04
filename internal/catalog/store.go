package catalog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/cx-tal-miterani/flightdesk/internal/codec"
	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/sirupsen/logrus"
)

// Store is the flight catalog: an insertion-ordered collection of flights
// keyed by flight number and mirrored to a file of fixed-size records.
//
// Every structural change rewrites the whole file. If the rewrite fails the
// in-memory change is undone, so memory and disk never disagree.
type Store struct {
	mu      sync.Mutex
	path    string
	flights models.Flights
	log     logrus.FieldLogger
}

// NewStore creates an empty catalog backed by path. Call Load to read
// existing data.
func NewStore(path string, log logrus.FieldLogger) *Store {
	return &Store{
		path: path,
		log:  log.WithField("store", "catalog"),
	}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the catalog file into memory, replacing the current contents.
// A missing file yields an empty catalog.
func (s *Store) Load() error {
	var flights models.Flights
	seen := make(map[string]bool)
	err := database.ReadRecords(s.path, codec.FlightRecordSize, func(block []byte) error {
		f, err := codec.DecodeFlight(block)
		if err != nil {
			return err
		}
		if seen[f.Number] {
			return fmt.Errorf("duplicate flight number %s: %w", f.Number, database.ErrCorruptStore)
		}
		seen[f.Number] = true
		flights = append(flights, f)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	s.mu.Lock()
	s.flights = flights
	s.mu.Unlock()

	s.log.WithField("flights", len(flights)).Debug("Catalog loaded")
	return nil
}

// Replace swaps the whole catalog for flights and persists it. Flight
// numbers must be unique.
func (s *Store) Replace(flights models.Flights) error {
	seen := make(map[string]bool, len(flights))
	for _, f := range flights {
		if err := codec.ValidateFlight(f); err != nil {
			return fmt.Errorf("flight %s: %w", f.Number, err)
		}
		if seen[f.Number] {
			return fmt.Errorf("flight %s: %w", f.Number, database.ErrAlreadyExists)
		}
		seen[f.Number] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.flights
	s.flights = flights.Clone()
	if err := s.persist(); err != nil {
		s.flights = previous
		return err
	}
	return nil
}

// Find returns the first flight with the given number.
func (s *Store) Find(number string) (models.Flight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flights.Find(number)
}

// Len returns the number of flights.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flights)
}

// Insert appends a new flight and persists the catalog.
func (s *Store) Insert(f models.Flight) error {
	if err := codec.ValidateFlight(f); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flights.Index(f.Number) >= 0 {
		return fmt.Errorf("flight %s: %w", f.Number, database.ErrAlreadyExists)
	}

	s.flights = append(s.flights, f)
	if err := s.persist(); err != nil {
		s.flights = s.flights[:len(s.flights)-1]
		return err
	}

	s.log.WithField("flight", f.Number).Info("Flight added")
	return nil
}

// Delete removes the flight with the given number and persists the catalog.
func (s *Store) Delete(number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.flights.Index(number)
	if i < 0 {
		return fmt.Errorf("flight %s: %w", number, database.ErrNotFound)
	}

	previous := s.flights.Clone()
	s.flights = append(s.flights[:i], s.flights[i+1:]...)
	if err := s.persist(); err != nil {
		s.flights = previous
		return err
	}

	s.log.WithField("flight", number).Info("Flight deleted")
	return nil
}

// Update sets one field of a flight and persists the catalog. The flight
// number itself cannot be changed. Price values must parse as a
// non-negative number.
func (s *Store) Update(number string, field models.FlightField, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.flights.Index(number)
	if i < 0 {
		return fmt.Errorf("flight %s: %w", number, database.ErrNotFound)
	}

	updated := s.flights[i]
	if err := setField(&updated, field, value); err != nil {
		return err
	}
	if err := codec.ValidateFlight(updated); err != nil {
		return err
	}

	previous := s.flights[i]
	s.flights[i] = updated
	if err := s.persist(); err != nil {
		s.flights[i] = previous
		return err
	}

	s.log.WithFields(logrus.Fields{"flight": number, "field": field}).Info("Flight updated")
	return nil
}

// List returns a copy of all flights in catalog order. An empty catalog
// returns ErrEmpty.
func (s *Store) List() (models.Flights, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.flights) == 0 {
		return nil, database.ErrEmpty
	}
	return s.flights.Clone(), nil
}

// Search returns the flights from departure to arrival, matched exactly,
// in catalog order. The result is independent of the catalog.
func (s *Store) Search(departure, arrival string) models.Flights {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := models.Flights{}
	for _, f := range s.flights {
		if f.DepartureAirport == departure && f.ArrivalAirport == arrival {
			result = append(result, f)
		}
	}
	return result
}

// SortBy reorders the catalog in memory. Flights comparing equal keep
// their relative order. The new order reaches disk with the next change
// or Flush.
func (s *Store) SortBy(compare models.Comparator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flights.SortBy(compare)
}

// Flush writes the current catalog to disk.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

// persist must be called with s.mu held.
func (s *Store) persist() error {
	blocks := make([][]byte, 0, len(s.flights))
	for _, f := range s.flights {
		block, err := codec.EncodeFlight(f)
		if err != nil {
			return fmt.Errorf("encoding flight %s: %v: %w", f.Number, err, database.ErrPersistFailed)
		}
		blocks = append(blocks, block)
	}
	if err := database.WriteRecords(s.path, blocks); err != nil {
		s.log.WithError(err).Error("Failed to persist catalog")
		return err
	}
	return nil
}

func setField(f *models.Flight, field models.FlightField, value string) error {
	switch field {
	case models.FieldAirline:
		f.Airline = value
	case models.FieldDepartureTime:
		f.DepartureTime = value
	case models.FieldArrivalTime:
		f.ArrivalTime = value
	case models.FieldDepartureAirport:
		f.DepartureAirport = value
	case models.FieldArrivalAirport:
		f.ArrivalAirport = value
	case models.FieldStatus:
		f.Status = value
	case models.FieldPrice:
		price, err := ParsePrice(value)
		if err != nil {
			return err
		}
		f.Price = price
	default:
		return fmt.Errorf("unknown field %q: %w", field, database.ErrInvalidInput)
	}
	return nil
}

// ParsePrice parses a non-negative decimal price.
func ParsePrice(value string) (float64, error) {
	price, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, fmt.Errorf("price %q: %v: %w", value, err, database.ErrInvalidInput)
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("price %q must be a non-negative number: %w", value, database.ErrInvalidInput)
	}
	return price, nil
}
