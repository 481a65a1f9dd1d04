package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/cx-tal-miterani/flightdesk/internal/ledger"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// FlightSummary is the catalog overview shown to administrators.
type FlightSummary struct {
	GeneratedAt time.Time
	Total       int
	OnTime      int
	Delayed     int
	Cancelled   int
	Other       int
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal
	AvgPrice    decimal.Decimal
}

// SummarizeFlights counts flights by status and computes price statistics.
// Both the English and the historical status words are recognized. An
// empty catalog yields all zeros.
func SummarizeFlights(flights models.Flights, now time.Time) FlightSummary {
	s := FlightSummary{GeneratedAt: now, Total: len(flights)}
	if len(flights) == 0 {
		return s
	}

	sum := decimal.Zero
	for i, f := range flights {
		switch f.Status {
		case models.FlightStatusOnTime, models.FlightStatusOnTimeZH:
			s.OnTime++
		case models.FlightStatusDelayed, models.FlightStatusDelayedZH:
			s.Delayed++
		case models.FlightStatusCancelled, models.FlightStatusCancelledZH:
			s.Cancelled++
		default:
			s.Other++
		}

		price := decimal.NewFromFloat(f.Price)
		if i == 0 || price.LessThan(s.MinPrice) {
			s.MinPrice = price
		}
		if i == 0 || price.GreaterThan(s.MaxPrice) {
			s.MaxPrice = price
		}
		sum = sum.Add(price)
	}
	s.AvgPrice = sum.Div(decimal.NewFromInt(int64(len(flights)))).Round(2)
	return s
}

// Percent returns n as a percentage of all flights, to one decimal.
func (s FlightSummary) Percent(n int) decimal.Decimal {
	if s.Total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(n)).Mul(hundred).Div(decimal.NewFromInt(int64(s.Total))).Round(1)
}

// Render writes the summary as text.
func (s FlightSummary) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Flight report - %s\n\n", s.GeneratedAt.Format(dateLayout))
	fmt.Fprintf(tw, "Total flights:\t%d\n", s.Total)
	fmt.Fprintf(tw, "On time:\t%d\t(%s%%)\n", s.OnTime, s.Percent(s.OnTime).StringFixed(1))
	fmt.Fprintf(tw, "Delayed:\t%d\t(%s%%)\n", s.Delayed, s.Percent(s.Delayed).StringFixed(1))
	fmt.Fprintf(tw, "Cancelled:\t%d\t(%s%%)\n", s.Cancelled, s.Percent(s.Cancelled).StringFixed(1))
	fmt.Fprintf(tw, "Other:\t%d\t(%s%%)\n", s.Other, s.Percent(s.Other).StringFixed(1))
	fmt.Fprintf(tw, "\nLowest price:\t%s\n", s.MinPrice.StringFixed(2))
	fmt.Fprintf(tw, "Highest price:\t%s\n", s.MaxPrice.StringFixed(2))
	fmt.Fprintf(tw, "Average price:\t%s\n", s.AvgPrice.StringFixed(2))
	return tw.Flush()
}

// UserOrders is one row of the order report.
type UserOrders struct {
	Username string
	Orders   int
	Spent    decimal.Decimal
}

// OrderSummary totals tickets across every ledger.
type OrderSummary struct {
	GeneratedAt time.Time
	Users       []UserOrders
	TotalOrders int
	TotalSpent  decimal.Decimal
}

func SummarizeOrders(ledgers []ledger.Summary, now time.Time) OrderSummary {
	s := OrderSummary{GeneratedAt: now, TotalSpent: decimal.Zero}
	for _, l := range ledgers {
		row := UserOrders{Username: l.Username, Orders: len(l.Entries), Spent: decimal.Zero}
		for _, f := range l.Entries {
			row.Spent = row.Spent.Add(decimal.NewFromFloat(f.Price))
		}
		s.Users = append(s.Users, row)
		s.TotalOrders += row.Orders
		s.TotalSpent = s.TotalSpent.Add(row.Spent)
	}
	return s
}

func (s OrderSummary) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Order report - %s\n\n", s.GeneratedAt.Format(dateLayout))
	fmt.Fprintln(tw, "USER\tORDERS\tSPENT")
	for _, u := range s.Users {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", u.Username, u.Orders, u.Spent.StringFixed(2))
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%s\n", s.TotalOrders, s.TotalSpent.StringFixed(2))
	return tw.Flush()
}

// renderer is implemented by both summaries.
type renderer interface {
	Render(w io.Writer) error
}

// Writer appends reports to dated files in a directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteFlights appends s to flight_report_YYYYMMDD.txt and returns the path.
func (w *Writer) WriteFlights(s FlightSummary) (string, error) {
	return w.append("flight_report", s.GeneratedAt, s)
}

// WriteOrders appends s to order_report_YYYYMMDD.txt and returns the path.
func (w *Writer) WriteOrders(s OrderSummary) (string, error) {
	return w.append("order_report", s.GeneratedAt, s)
}

func (w *Writer) append(prefix string, at time.Time, r renderer) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s_%s.txt", prefix, at.Format("20060102")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open report: %w", err)
	}
	if err := r.Render(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if _, err := f.WriteString("\n"); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
