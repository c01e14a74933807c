package main

import (
	"fmt"
	"strconv"

	"github.com/alpacahq/gofolio/gberrors"
	"github.com/alpacahq/gofolio/migration"
	"github.com/alpacahq/gofolio/service/settlement"
	"github.com/alpacahq/gofolio/utils/env"
	"gopkg.in/urfave/cli.v1"
)

func commands() []cli.Command {
	return []cli.Command{
		{
			Name:  "migrate",
			Usage: "bring the database schema up to date",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "rollback", Usage: "undo the latest migration instead"},
			},
			Action: action(migrate),
		},
		{
			Name:      "register",
			Usage:     "open a new account",
			ArgsUsage: "<username>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "confirm", Usage: "password confirmation"},
			},
			Action: action(register),
		},
		{
			Name:  "passwd",
			Usage: "change the account password",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "new", Usage: "new password"},
				cli.StringFlag{Name: "confirm", Usage: "new password confirmation"},
			},
			Action: action(passwd),
		},
		{
			Name:      "quote",
			Usage:     "look up the current price of a symbol",
			ArgsUsage: "<symbol>",
			Action:    action(lookup),
		},
		{
			Name:   "symbols",
			Usage:  "list tradable symbols",
			Action: action(symbols),
		},
		{
			Name:      "buy",
			Usage:     "buy whole shares at the current price",
			ArgsUsage: "<symbol> <shares>",
			Action:    action(trade(true)),
		},
		{
			Name:      "sell",
			Usage:     "sell whole shares at the current price",
			ArgsUsage: "<symbol> <shares>",
			Action:    action(trade(false)),
		},
		{
			Name:      "deposit",
			Usage:     "add cash to the account",
			ArgsUsage: "<amount>",
			Action:    action(transfer(true)),
		},
		{
			Name:      "withdraw",
			Usage:     "take cash out of the account",
			ArgsUsage: "<amount>",
			Action:    action(transfer(false)),
		},
		{
			Name:   "portfolio",
			Usage:  "value the account at current prices",
			Action: action(portfolioCmd),
		},
		{
			Name:  "history",
			Usage: "list ledger entries, most recent first",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "limit", Usage: "entries per page (default HISTORY_PAGE_SIZE)"},
				cli.IntFlag{Name: "offset", Usage: "entries to skip"},
			},
			Action: action(history),
		},
	}
}

// action opens a session for fn and turns its error into an
// exit error carrying the failure message.
func action(fn func(c *cli.Context, s *session) error) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		s, err := open(c)
		if err == nil {
			err = fn(c, s)
		}
		if err != nil {
			return cli.NewExitError(gberrors.Format(err), exitCode(err))
		}
		return nil
	}
}

func args(c *cli.Context, n int) error {
	if len(c.Args()) != n {
		return gberrors.ValidationError.WithMsgf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage)
	}
	return nil
}

// accountID authenticates the global --user and --password.
func accountID(c *cli.Context, s *session) (string, error) {
	acct, err := s.services.Account().Authenticate(s.ctx, c.GlobalString("user"), c.GlobalString("password"))
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

func migrate(c *cli.Context, s *session) error {
	if c.Bool("rollback") {
		if err := migration.Migration(s.db).RollbackLast(); err != nil {
			return gberrors.PersistenceFailure.WithMsg("failed to roll back migration").WithError(err)
		}
		fmt.Println("rolled back latest migration")
		return nil
	}

	fmt.Println("schema up to date")
	return nil
}

func register(c *cli.Context, s *session) error {
	if err := args(c, 1); err != nil {
		return err
	}

	acct, err := s.services.Account().Register(s.ctx, c.Args().First(), c.GlobalString("password"), c.String("confirm"))
	if err != nil {
		return err
	}

	fmt.Printf("registered %s (%s) with %s cash\n", acct.Username, acct.ID, formatMoney(acct.Cash))
	return nil
}

func passwd(c *cli.Context, s *session) error {
	id, err := accountID(c, s)
	if err != nil {
		return err
	}

	if err = s.services.Account().ChangePassword(s.ctx, id, c.GlobalString("password"), c.String("new"), c.String("confirm")); err != nil {
		return err
	}

	fmt.Println("password changed")
	return nil
}

func lookup(c *cli.Context, s *session) error {
	if err := args(c, 1); err != nil {
		return err
	}

	q, err := s.services.Quote().Get(s.ctx, c.Args().First())
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s): %s\n", q.Name, q.Symbol, formatMoney(q.Price))
	return nil
}

func symbols(c *cli.Context, s *session) error {
	list, err := s.services.Quote().Symbols(s.ctx)
	if err != nil {
		return err
	}

	for _, symbol := range list {
		fmt.Println(symbol)
	}
	return nil
}

func trade(buy bool) func(c *cli.Context, s *session) error {
	return func(c *cli.Context, s *session) error {
		if err := args(c, 2); err != nil {
			return err
		}

		shares, err := parseShares(c.Args().Get(1))
		if err != nil {
			return err
		}

		id, err := accountID(c, s)
		if err != nil {
			return err
		}

		var res *settlement.Result
		if buy {
			res, err = s.services.Settlement().Buy(s.ctx, id, c.Args().First(), shares)
		} else {
			res, err = s.services.Settlement().Sell(s.ctx, id, c.Args().First(), shares)
		}
		if err != nil {
			return err
		}

		printResult(res)
		return nil
	}
}

func transfer(deposit bool) func(c *cli.Context, s *session) error {
	return func(c *cli.Context, s *session) error {
		if err := args(c, 1); err != nil {
			return err
		}

		amount, err := parseAmount(c.Args().First())
		if err != nil {
			return err
		}

		id, err := accountID(c, s)
		if err != nil {
			return err
		}

		var res *settlement.Result
		if deposit {
			res, err = s.services.Settlement().Deposit(s.ctx, id, amount)
		} else {
			res, err = s.services.Settlement().Withdraw(s.ctx, id, amount)
		}
		if err != nil {
			return err
		}

		printResult(res)
		return nil
	}
}

func printResult(res *settlement.Result) {
	e := res.Entry
	if e.IsCashMovement() {
		fmt.Printf("%s %s\n", e.Name, formatMoney(e.CostTotal.Abs()))
	} else {
		fmt.Printf("%s %s shares of %s at %s\n", verb(e.Shares), formatShares(abs(e.Shares)), e.Symbol, formatMoney(e.Price))
	}
	fmt.Printf("cash %s, realized gain %s\n", formatMoney(res.Cash), formatMoney(res.RealizedGain))
}

func portfolioCmd(c *cli.Context, s *session) error {
	id, err := accountID(c, s)
	if err != nil {
		return err
	}

	snap, err := s.services.Portfolio().Snapshot(s.ctx, id)
	if err != nil {
		return err
	}

	return writeSnapshot(c.App.Writer, snap)
}

func history(c *cli.Context, s *session) error {
	id, err := accountID(c, s)
	if err != nil {
		return err
	}

	limit := c.Int("limit")
	if !c.IsSet("limit") {
		if limit, err = strconv.Atoi(env.GetVar("HISTORY_PAGE_SIZE")); err != nil {
			return gberrors.ValidationError.WithMsg("invalid HISTORY_PAGE_SIZE").WithError(err)
		}
	}
	offset := c.Int("offset")

	entries, err := s.services.Portfolio().History(s.ctx, id, &limit, &offset)
	if err != nil {
		return err
	}

	return writeHistory(c.App.Writer, entries)
}
