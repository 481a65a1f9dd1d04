package terminal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/internal/logging"
	"github.com/cx-tal-miterani/flightdesk/internal/report"
	"github.com/cx-tal-miterani/flightdesk/internal/service"
	"github.com/cx-tal-miterani/flightdesk/internal/service/mocks"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	ca101 = models.Flight{Number: "CA101", Airline: "Air China", DepartureTime: "08:00", ArrivalTime: "10:15",
		DepartureAirport: "PEK", ArrivalAirport: "SHA", Status: models.FlightStatusOnTime, Price: 500}
	mu501 = models.Flight{Number: "MU501", Airline: "China Eastern", DepartureTime: "07:30", ArrivalTime: "09:40",
		DepartureAirport: "PEK", ArrivalAirport: "SHA", Status: models.FlightStatusDelayed, Price: 420}
	cz303 = models.Flight{Number: "CZ303", Airline: "China Southern", DepartureTime: "13:00", ArrivalTime: "16:20",
		DepartureAirport: "CAN", ArrivalAirport: "PEK", Status: models.FlightStatusOnTime, Price: 880}
)

func run(t *testing.T, svc service.BookingService, input string, pageSize int) string {
	t.Helper()
	var out bytes.Buffer
	c := New(svc, strings.NewReader(input), &out, Options{PageSize: pageSize}, logging.Discard())
	require.NoError(t, c.Run(context.Background()))
	return out.String()
}

func lines(in ...string) string {
	return strings.Join(in, "\n") + "\n"
}

func TestConsole_ExitAndEOF(t *testing.T) {
	svc := new(mocks.MockBookingService)

	out := run(t, svc, lines("0"), 0)
	assert.Contains(t, out, "Goodbye.")

	out = run(t, svc, "", 0)
	assert.Contains(t, out, "1. Log in")

	out = run(t, svc, lines("9", "0"), 0)
	assert.Contains(t, out, "Invalid option")

	svc.AssertExpectations(t)
}

func TestConsole_LoginFailure(t *testing.T) {
	svc := new(mocks.MockBookingService)
	svc.On("Login", mock.Anything, "bob", "bad").Return(nil, database.ErrNotFound)

	out := run(t, svc, lines("1", "bob", "bad", "0"), 0)

	assert.Contains(t, out, "Wrong username or password.")
	svc.AssertExpectations(t)
}

func TestConsole_Register(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		mockErr   error
		callsSvc  bool
		expectOut string
	}{
		{
			name:      "success",
			input:     lines("2", "alice", "pw", "pw", "0"),
			callsSvc:  true,
			expectOut: "Registered alice.",
		},
		{
			name:      "taken",
			input:     lines("2", "alice", "pw", "pw", "0"),
			mockErr:   database.ErrAlreadyExists,
			callsSvc:  true,
			expectOut: "Username alice is already taken.",
		},
		{
			name:      "mismatch",
			input:     lines("2", "alice", "pw", "other", "0"),
			expectOut: "Passwords do not match.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mocks.MockBookingService)
			if tt.callsSvc {
				svc.On("Register", mock.Anything, "alice", "pw").Return(tt.mockErr)
			}

			out := run(t, svc, tt.input, 0)

			assert.Contains(t, out, tt.expectOut)
			svc.AssertExpectations(t)
		})
	}
}

func TestConsole_BuyTicket(t *testing.T) {
	svc := new(mocks.MockBookingService)
	sess := service.NewSession(models.Account{Username: "alice", Role: models.RoleUser, Balance: 500}, nil)

	svc.On("Login", mock.Anything, "alice", "pw").Return(sess, nil)
	svc.On("SearchFlights", mock.Anything, sess, "PEK", "SHA").Return(models.Flights{ca101, mu501}, nil)
	svc.On("SortResults", mock.Anything, sess, service.SortByPrice).Return(models.Flights{mu501, ca101}, nil)
	svc.On("Purchase", mock.Anything, sess, "CA101").Return(ca101, nil)

	out := run(t, svc, lines("1", "alice", "pw", "1", "PEK", "SHA", "3", "1", "CA101", "0", "0"), 0)

	assert.Contains(t, out, "Welcome, alice.")
	assert.Contains(t, out, "MU501")
	assert.Contains(t, out, "Purchased CA101.")
	assert.Contains(t, out, "Logged out.")
	assert.Less(t, strings.LastIndex(out, "MU501"), strings.LastIndex(out, "Purchased"))
	svc.AssertExpectations(t)
}

func TestConsole_BuyTicketInsufficientFunds(t *testing.T) {
	svc := new(mocks.MockBookingService)
	sess := service.NewSession(models.Account{Username: "alice", Role: models.RoleUser, Balance: 100}, nil)

	svc.On("Login", mock.Anything, "alice", "pw").Return(sess, nil)
	svc.On("SearchFlights", mock.Anything, sess, "PEK", "SHA").Return(models.Flights{ca101}, nil)
	svc.On("Purchase", mock.Anything, sess, "CA101").Return(models.Flight{}, service.ErrInsufficientFunds)

	out := run(t, svc, lines("1", "alice", "pw", "1", "PEK", "SHA", "1", "CA101", "0", "0", "0"), 0)

	assert.Contains(t, out, "the ticket costs 500.00, you have 100.00")
	svc.AssertExpectations(t)
}

func TestConsole_SearchWithoutResults(t *testing.T) {
	svc := new(mocks.MockBookingService)
	sess := service.NewSession(models.Account{Username: "alice", Role: models.RoleUser}, nil)

	svc.On("Login", mock.Anything, "alice", "pw").Return(sess, nil)
	svc.On("SearchFlights", mock.Anything, sess, "SHA", "PEK").Return(nil, service.ErrNoResults)

	out := run(t, svc, lines("1", "alice", "pw", "1", "SHA", "PEK", "0", "0"), 0)

	assert.Contains(t, out, "No matching flights.")
	svc.AssertExpectations(t)
}

func TestConsole_OrdersAndCancel(t *testing.T) {
	svc := new(mocks.MockBookingService)
	sess := service.NewSession(models.Account{Username: "alice", Role: models.RoleUser}, nil)

	svc.On("Login", mock.Anything, "alice", "pw").Return(sess, nil)
	svc.On("Orders", mock.Anything, sess).Return(models.Flights{ca101, mu501}, nil).Once()
	svc.On("CancelOrder", mock.Anything, sess, "ZZ1").Return(models.Flight{}, database.ErrNotFound)
	svc.On("Orders", mock.Anything, sess).Return(models.Flights{ca101, mu501}, nil).Once()
	svc.On("CancelOrder", mock.Anything, sess, "CA101").Return(ca101, nil)
	svc.On("Orders", mock.Anything, sess).Return(nil, database.ErrEmpty).Once()

	out := run(t, svc, lines("1", "alice", "pw", "2", "1", "ZZ1", "1", "CA101", "0", "0"), 0)

	assert.Contains(t, out, "No ticket for flight ZZ1.")
	assert.Contains(t, out, "Ticket for CA101 cancelled.")
	assert.Contains(t, out, "You have no orders.")
	svc.AssertExpectations(t)
}

func TestConsole_Recharge(t *testing.T) {
	svc := new(mocks.MockBookingService)
	sess := service.NewSession(models.Account{Username: "alice", Role: models.RoleUser, Balance: 10}, nil)

	svc.On("Login", mock.Anything, "alice", "pw").Return(sess, nil)
	svc.On("Recharge", mock.Anything, sess, 90.0).Return(100.0, nil)
	svc.On("Recharge", mock.Anything, sess, -5.0).Return(0.0, database.ErrInvalidInput)

	out := run(t, svc, lines("1", "alice", "pw", "3", "90", "3", "-5", "3", "abc", "0", "0"), 0)

	assert.Contains(t, out, "Current balance: 10.00")
	assert.Contains(t, out, "Recharged. Current balance: 100.00")
	assert.Contains(t, out, "Invalid input")
	assert.Contains(t, out, `"abc" is not a number.`)
	svc.AssertExpectations(t)
}

func TestConsole_AdminPagination(t *testing.T) {
	svc := new(mocks.MockBookingService)
	sess := service.NewSession(models.Account{Username: "admin", Role: models.RoleAdmin}, nil)

	svc.On("Login", mock.Anything, "admin", "123").Return(sess, nil)
	svc.On("Flights", mock.Anything, sess).Return(models.Flights{ca101, mu501, cz303}, nil)
	svc.On("SortFlights", mock.Anything, sess, service.SortByPrice).Return(models.Flights{mu501, ca101, cz303}, nil)

	out := run(t, svc, lines("1", "admin", "123", "1", "n", "n", "s", "0", "0", "0"), 2)

	assert.Contains(t, out, "== Administration ==")
	assert.Contains(t, out, "Page 1/2")
	assert.Contains(t, out, "Page 2/2")
	assert.Contains(t, out, "Already on the last page.")
	svc.AssertExpectations(t)
}

func TestConsole_AdminAddEditDelete(t *testing.T) {
	svc := new(mocks.MockBookingService)
	sess := service.NewSession(models.Account{Username: "admin", Role: models.RoleAdmin}, nil)

	added := models.Flight{Number: "HU777", Airline: "Hainan", DepartureTime: "21:00", ArrivalTime: "23:30",
		DepartureAirport: "HAK", ArrivalAirport: "PEK", Status: "on-time", Price: 300}

	svc.On("Login", mock.Anything, "admin", "123").Return(sess, nil)
	svc.On("AddFlight", mock.Anything, sess, added).Return(nil)
	svc.On("UpdateFlight", mock.Anything, sess, "HU777", models.FieldStatus, "delayed").Return(nil)
	svc.On("DeleteFlight", mock.Anything, sess, "XX1").Return(database.ErrNotFound)

	out := run(t, svc, lines(
		"1", "admin", "123",
		"2", "HU777", "Hainan", "21:00", "23:30", "HAK", "PEK", "on-time", "300",
		"4", "HU777", "6", "delayed",
		"3", "XX1",
		"0", "0",
	), 0)

	assert.Contains(t, out, "Flight HU777 added.")
	assert.Contains(t, out, "Flight HU777 updated.")
	assert.Contains(t, out, "Flight XX1 does not exist.")
	svc.AssertExpectations(t)
}

func TestConsole_AdminReports(t *testing.T) {
	svc := new(mocks.MockBookingService)
	sess := service.NewSession(models.Account{Username: "admin", Role: models.RoleAdmin}, nil)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	svc.On("Login", mock.Anything, "admin", "123").Return(sess, nil)
	svc.On("FlightReport", mock.Anything, sess).
		Return(report.SummarizeFlights(models.Flights{ca101, mu501}, day), "data/reports/flight_report_20240601.txt", nil)
	svc.On("OrderReport", mock.Anything, sess).
		Return(report.OrderSummary{}, "", database.ErrPersistFailed)

	out := run(t, svc, lines("1", "admin", "123", "5", "6", "0", "0"), 0)

	assert.Contains(t, out, "Flight report - 2024-06-01")
	assert.Contains(t, out, "Report saved to data/reports/flight_report_20240601.txt")
	assert.Contains(t, out, "Could not save changes")
	svc.AssertExpectations(t)
}

// brokenWriter fails every write that contains marker.
type brokenWriter struct {
	bytes.Buffer
	marker string
}

func (w *brokenWriter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte(w.marker)) {
		return 0, errors.New("write failed")
	}
	return w.Buffer.Write(p)
}

func TestConsole_AdminReportDisplayFailure(t *testing.T) {
	svc := new(mocks.MockBookingService)
	sess := service.NewSession(models.Account{Username: "admin", Role: models.RoleAdmin}, nil)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	svc.On("Login", mock.Anything, "admin", "123").Return(sess, nil)
	svc.On("FlightReport", mock.Anything, sess).
		Return(report.SummarizeFlights(models.Flights{ca101}, day), "data/reports/flight_report_20240601.txt", nil)

	logger, hook := logtest.NewNullLogger()
	out := &brokenWriter{marker: "Total flights"}
	c := New(svc, strings.NewReader(lines("1", "admin", "123", "5", "0", "0")), out, Options{}, logger)
	require.NoError(t, c.Run(context.Background()))

	assert.Contains(t, out.String(), "Report saved to data/reports/flight_report_20240601.txt")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "Failed to display report", hook.LastEntry().Message)
	svc.AssertExpectations(t)
}

func TestConsole_ReadPasswordConsumesBufferedInput(t *testing.T) {
	tty, err := os.CreateTemp(t.TempDir(), "tty")
	require.NoError(t, err)
	defer tty.Close()

	var out bytes.Buffer
	c := New(new(mocks.MockBookingService), strings.NewReader(lines("alice", "secret")), &out, Options{}, logging.Discard())
	c.tty = tty

	username, err := c.prompt("Username: ")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	password, err := c.readPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "secret", password)
}

func TestPage(t *testing.T) {
	flights := models.Flights{ca101, mu501, cz303}

	rows, pages := page(flights, 0, 2)
	assert.Equal(t, 2, pages)
	assert.Equal(t, models.Flights{ca101, mu501}, rows)

	rows, _ = page(flights, 5, 2)
	assert.Equal(t, models.Flights{cz303}, rows)

	rows, pages = page(nil, 0, 2)
	assert.Nil(t, rows)
	assert.Zero(t, pages)
}
