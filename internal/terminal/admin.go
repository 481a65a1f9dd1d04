package terminal

import (
	"context"
	"errors"
	"strconv"

	"github.com/cx-tal-miterani/flightdesk/internal/catalog"
	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/internal/service"
	"github.com/cx-tal-miterani/flightdesk/models"
)

var fieldLabels = map[models.FlightField]string{
	models.FieldAirline:          "Airline",
	models.FieldDepartureTime:    "Departure time",
	models.FieldArrivalTime:      "Arrival time",
	models.FieldDepartureAirport: "Departure airport",
	models.FieldArrivalAirport:   "Arrival airport",
	models.FieldStatus:           "Status",
	models.FieldPrice:            "Price",
}

func (c *Console) adminMenu(ctx context.Context, sess *service.Session) error {
	for {
		c.printf("\n== Administration ==\n")
		c.printf("1. View flights\n2. Add flight\n3. Delete flight\n4. Edit flight\n" +
			"5. Flight report\n6. Order report\n7. Change password\n0. Log out\n")
		choice, err := c.prompt("Choose: ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = c.viewFlights(ctx, sess)
		case "2":
			err = c.addFlight(ctx, sess)
		case "3":
			err = c.deleteFlight(ctx, sess)
		case "4":
			err = c.editFlight(ctx, sess)
		case "5":
			c.flightReport(ctx, sess)
		case "6":
			c.orderReport(ctx, sess)
		case "7":
			err = c.changePassword(ctx, sess)
		case "0":
			c.printf("Logged out.\n")
			return nil
		default:
			c.printf("Invalid option, try again.\n")
		}
		if err != nil {
			return err
		}
	}
}

func (c *Console) viewFlights(ctx context.Context, sess *service.Session) error {
	flights, err := c.svc.Flights(ctx, sess)
	if errors.Is(err, database.ErrEmpty) {
		c.printf("The catalog is empty.\n")
		return nil
	}
	if err != nil {
		c.report(err)
		return nil
	}

	current := 0
	for {
		rows, pages := page(flights, current, c.pageSize)
		writeFlights(c.out, rows)
		c.printf("Page %d/%d\n", current+1, pages)
		c.printf("n. Next  p. Previous  t. Sort by departure time  s. Sort by price  0. Back\n")
		choice, err := c.prompt("Choose: ")
		if err != nil {
			return err
		}

		switch choice {
		case "n":
			if current+1 < pages {
				current++
			} else {
				c.printf("Already on the last page.\n")
			}
		case "p":
			if current > 0 {
				current--
			} else {
				c.printf("Already on the first page.\n")
			}
		case "t", "s":
			key := service.SortByDepartureTime
			if choice == "s" {
				key = service.SortByPrice
			}
			sorted, err := c.svc.SortFlights(ctx, sess, key)
			if err != nil {
				c.report(err)
				continue
			}
			flights = sorted
			current = 0
		case "0":
			return nil
		default:
			c.printf("Invalid option, try again.\n")
		}
	}
}

func (c *Console) addFlight(ctx context.Context, sess *service.Session) error {
	var f models.Flight
	questions := []struct {
		label string
		dst   *string
	}{
		{"Flight number: ", &f.Number},
		{"Airline: ", &f.Airline},
		{"Departure time: ", &f.DepartureTime},
		{"Arrival time: ", &f.ArrivalTime},
		{"Departure airport: ", &f.DepartureAirport},
		{"Arrival airport: ", &f.ArrivalAirport},
		{"Status: ", &f.Status},
	}
	for _, q := range questions {
		answer, err := c.prompt(q.label)
		if err != nil {
			return err
		}
		*q.dst = answer
	}

	price, err := c.prompt("Price: ")
	if err != nil {
		return err
	}
	if f.Price, err = catalog.ParsePrice(price); err != nil {
		c.report(err)
		return nil
	}

	if err := c.svc.AddFlight(ctx, sess, f); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			c.printf("Flight %s already exists.\n", f.Number)
			return nil
		}
		c.report(err)
		return nil
	}
	c.printf("Flight %s added.\n", f.Number)
	return nil
}

func (c *Console) deleteFlight(ctx context.Context, sess *service.Session) error {
	number, err := c.prompt("Flight number to delete: ")
	if err != nil {
		return err
	}
	if err := c.svc.DeleteFlight(ctx, sess, number); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.printf("Flight %s does not exist.\n", number)
			return nil
		}
		c.report(err)
		return nil
	}
	c.printf("Flight %s deleted.\n", number)
	return nil
}

func (c *Console) editFlight(ctx context.Context, sess *service.Session) error {
	number, err := c.prompt("Flight number to edit: ")
	if err != nil {
		return err
	}

	for i, field := range models.EditableFields {
		c.printf("%d. %s\n", i+1, fieldLabels[field])
	}
	choice, err := c.prompt("Field: ")
	if err != nil {
		return err
	}
	n, convErr := strconv.Atoi(choice)
	if convErr != nil || n < 1 || n > len(models.EditableFields) {
		c.printf("Invalid option.\n")
		return nil
	}
	field := models.EditableFields[n-1]

	value, err := c.prompt("New " + fieldLabels[field] + ": ")
	if err != nil {
		return err
	}
	if err := c.svc.UpdateFlight(ctx, sess, number, field, value); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.printf("Flight %s does not exist.\n", number)
			return nil
		}
		c.report(err)
		return nil
	}
	c.printf("Flight %s updated.\n", number)
	return nil
}

func (c *Console) flightReport(ctx context.Context, sess *service.Session) {
	summary, path, err := c.svc.FlightReport(ctx, sess)
	if err != nil {
		c.report(err)
		return
	}
	if err := summary.Render(c.out); err != nil {
		c.log.WithError(err).Warn("Failed to display report")
	}
	c.printf("Report saved to %s\n", path)
}

func (c *Console) orderReport(ctx context.Context, sess *service.Session) {
	summary, path, err := c.svc.OrderReport(ctx, sess)
	if err != nil {
		c.report(err)
		return
	}
	if err := summary.Render(c.out); err != nil {
		c.log.WithError(err).Warn("Failed to display report")
	}
	c.printf("Report saved to %s\n", path)
}
