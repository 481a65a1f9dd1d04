package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cx-tal-miterani/flightdesk/internal/catalog"
	"github.com/cx-tal-miterani/flightdesk/internal/codec"
	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/sirupsen/logrus"
)

// Column order of the seed file. The first line is a header and is skipped.
const (
	colNumber = iota
	colAirline
	colDepartureTime
	colArrivalTime
	colDepartureAirport
	colArrivalAirport
	colStatus
	colPrice
	numColumns
)

// Parse reads flights from seed CSV data. Text longer than its record slot
// is cut to fit, lines without a flight number are skipped, and a repeated
// flight number keeps the first occurrence. Missing trailing columns are
// left empty; a price that does not parse fails the import.
func Parse(r io.Reader, log logrus.FieldLogger) (models.Flights, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return models.Flights{}, nil
		}
		return nil, fmt.Errorf("seed header: %v: %w", err, database.ErrInvalidInput)
	}

	flights := models.Flights{}
	seen := make(map[string]bool)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("seed: %v: %w", err, database.ErrInvalidInput)
		}
		line, _ := cr.FieldPos(0)

		field := func(i int) string {
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		if field(colNumber) == "" {
			continue
		}

		f := models.Flight{
			Number:           field(colNumber),
			Airline:          field(colAirline),
			DepartureTime:    field(colDepartureTime),
			ArrivalTime:      field(colArrivalTime),
			DepartureAirport: field(colDepartureAirport),
			ArrivalAirport:   field(colArrivalAirport),
			Status:           field(colStatus),
		}
		if p := field(colPrice); p != "" {
			price, err := catalog.ParsePrice(p)
			if err != nil {
				return nil, fmt.Errorf("seed line %d: %w", line, err)
			}
			f.Price = price
		}
		if len(record) > numColumns {
			log.WithField("line", line).Warn("Ignoring extra seed columns")
		}

		f = codec.TruncateFlight(f)
		if seen[f.Number] {
			log.WithFields(logrus.Fields{"line": line, "flight": f.Number}).Warn("Skipping duplicate flight in seed")
			continue
		}
		seen[f.Number] = true
		flights = append(flights, f)
	}
	return flights, nil
}

// ImportFile replaces the catalog with the flights in the seed file at path.
func ImportFile(store *catalog.Store, path string, log logrus.FieldLogger) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed: %w", err)
	}
	defer file.Close()

	flights, err := Parse(file, log)
	if err != nil {
		return 0, err
	}
	if err := store.Replace(flights); err != nil {
		return 0, err
	}

	log.WithFields(logrus.Fields{"path": path, "flights": len(flights)}).Info("Imported seed flights")
	return len(flights), nil
}

// Bootstrap prepares the catalog at startup. An existing catalog file is
// loaded as-is. Without one, the seed file is imported and persisted if
// present, otherwise the catalog starts empty. force re-imports the seed
// even when a catalog file exists.
func Bootstrap(store *catalog.Store, seedPath string, force bool, log logrus.FieldLogger) error {
	catalogExists, err := database.Exists(store.Path())
	if err != nil {
		return fmt.Errorf("failed to check catalog: %w", err)
	}
	if catalogExists && !force {
		return store.Load()
	}

	seedExists, err := database.Exists(seedPath)
	if err != nil {
		return fmt.Errorf("failed to check seed: %w", err)
	}
	if !seedExists {
		if force {
			return fmt.Errorf("seed %s: %w", seedPath, database.ErrNotFound)
		}
		log.WithField("path", seedPath).Warn("No catalog and no seed file, starting with an empty catalog")
		return store.Load()
	}

	_, err = ImportFile(store, seedPath, log)
	return err
}
