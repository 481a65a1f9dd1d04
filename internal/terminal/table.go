package terminal

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cx-tal-miterani/flightdesk/models"
)

func writeFlights(w io.Writer, flights models.Flights) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FLIGHT\tAIRLINE\tDEPARTS\tARRIVES\tFROM\tTO\tSTATUS\tPRICE")
	for _, f := range flights {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f\n",
			f.Number, f.Airline, f.DepartureTime, f.ArrivalTime,
			f.DepartureAirport, f.ArrivalAirport, f.Status, f.Price)
	}
	return tw.Flush()
}

// page returns the flights on page p (zero based) and the page count.
func page(flights models.Flights, p, size int) (models.Flights, int) {
	pages := (len(flights) + size - 1) / size
	if pages == 0 {
		return nil, 0
	}
	if p < 0 {
		p = 0
	}
	if p >= pages {
		p = pages - 1
	}
	end := min((p+1)*size, len(flights))
	return flights[p*size : end], pages
}
