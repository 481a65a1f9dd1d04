package terminal

import (
	"context"
	"errors"
	"strconv"

	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/internal/service"
	"github.com/cx-tal-miterani/flightdesk/models"
)

func (c *Console) userMenu(ctx context.Context, sess *service.Session) error {
	for {
		c.printf("\n== %s ==\n", sess.Account().Username)
		c.printf("1. Buy ticket\n2. My orders\n3. Balance\n4. Change password\n0. Log out\n")
		choice, err := c.prompt("Choose: ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = c.buyTicket(ctx, sess)
		case "2":
			err = c.orders(ctx, sess)
		case "3":
			err = c.balance(ctx, sess)
		case "4":
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

func (c *Console) buyTicket(ctx context.Context, sess *service.Session) error {
	results, err := c.search(ctx, sess)
	if err != nil || results == nil {
		return err
	}

	for {
		writeFlights(c.out, results)
		c.printf("1. Choose flight  2. Sort by departure time  3. Sort by price  4. New search  0. Back\n")
		choice, err := c.prompt("Choose: ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			number, err := c.prompt("Flight number: ")
			if err != nil {
				return err
			}
			if number == "" {
				continue
			}
			f, err := c.svc.Purchase(ctx, sess, number)
			if err != nil {
				if errors.Is(err, service.ErrInsufficientFunds) {
					c.printf("Insufficient balance: the ticket costs %.2f, you have %.2f.\n",
						priceOf(results, number), sess.Account().Balance)
					continue
				}
				if errors.Is(err, database.ErrNotFound) {
					c.printf("Flight %s is not in the list.\n", number)
					continue
				}
				c.report(err)
				continue
			}
			c.printf("Purchased %s. Remaining balance: %.2f\n", f.Number, sess.Account().Balance)
			return nil
		case "2", "3":
			key := service.SortByDepartureTime
			if choice == "3" {
				key = service.SortByPrice
			}
			sorted, err := c.svc.SortResults(ctx, sess, key)
			if err != nil {
				c.report(err)
				continue
			}
			results = sorted
		case "4":
			next, err := c.search(ctx, sess)
			if err != nil {
				return err
			}
			if next == nil {
				return nil
			}
			results = next
		case "0":
			return nil
		default:
			c.printf("Invalid option, try again.\n")
		}
	}
}

// search asks for a route. It returns nil results when nothing matched.
func (c *Console) search(ctx context.Context, sess *service.Session) (models.Flights, error) {
	departure, err := c.prompt("From: ")
	if err != nil {
		return nil, err
	}
	arrival, err := c.prompt("To: ")
	if err != nil {
		return nil, err
	}

	results, err := c.svc.SearchFlights(ctx, sess, departure, arrival)
	if err != nil {
		c.report(err)
		return nil, nil
	}
	return results, nil
}

func (c *Console) orders(ctx context.Context, sess *service.Session) error {
	entries, err := c.svc.Orders(ctx, sess)
	for {
		if errors.Is(err, database.ErrEmpty) {
			c.printf("You have no orders.\n")
			return nil
		}
		if err != nil {
			c.report(err)
			return nil
		}

		writeFlights(c.out, entries)
		c.printf("1. Cancel ticket  2. Sort by departure time  3. Sort by price  0. Back\n")
		choice, perr := c.prompt("Choose: ")
		if perr != nil {
			return perr
		}

		switch choice {
		case "1":
			number, perr := c.prompt("Flight number to cancel: ")
			if perr != nil {
				return perr
			}
			if _, cerr := c.svc.CancelOrder(ctx, sess, number); cerr != nil {
				if errors.Is(cerr, database.ErrNotFound) {
					c.printf("No ticket for flight %s.\n", number)
				} else {
					c.report(cerr)
				}
			} else {
				c.printf("Ticket for %s cancelled.\n", number)
			}
			entries, err = c.svc.Orders(ctx, sess)
		case "2":
			entries, err = c.svc.SortOrders(ctx, sess, service.SortByDepartureTime)
		case "3":
			entries, err = c.svc.SortOrders(ctx, sess, service.SortByPrice)
		case "0":
			return nil
		default:
			c.printf("Invalid option, try again.\n")
		}
	}
}

func (c *Console) balance(ctx context.Context, sess *service.Session) error {
	c.printf("Current balance: %.2f\n", sess.Account().Balance)
	amount, err := c.prompt("Recharge amount (Enter to go back): ")
	if err != nil || amount == "" {
		return err
	}

	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		c.printf("%q is not a number.\n", amount)
		return nil
	}
	balance, err := c.svc.Recharge(ctx, sess, value)
	if err != nil {
		c.report(err)
		return nil
	}
	c.printf("Recharged. Current balance: %.2f\n", balance)
	return nil
}

func priceOf(flights models.Flights, number string) float64 {
	f, _ := flights.Find(number)
	return f.Price
}
