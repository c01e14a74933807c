package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/alpacahq/gofolio/gberrors"
	"github.com/alpacahq/gofolio/models"
	"github.com/alpacahq/gofolio/service/portfolio"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// formatMoney renders d as US dollars rounded to the cent,
// e.g. $1,234.56.
func formatMoney(d decimal.Decimal) string {
	return money.New(d.Shift(2).Round(0).IntPart(), money.USD).Display()
}

func formatShares(n int64) string {
	return humanize.Comma(n)
}

func formatPercent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

func parseShares(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.Replace(strings.TrimSpace(s), ",", "", -1), 10, 64)
	if err != nil {
		return 0, gberrors.ValidationError.WithMsgf("invalid share count %q", s)
	}
	return n, nil
}

// parseAmount accepts plain or dollar formatted amounts such
// as 1234.5 or $1,234.50.
func parseAmount(s string) (decimal.Decimal, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "$")
	raw = strings.Replace(raw, ",", "", -1)

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, gberrors.ValidationError.WithMsgf("invalid amount %q", s)
	}
	return d, nil
}

// exitCode is 2 for storage and price feed failures and 1 for
// anything the user can correct.
func exitCode(err error) int {
	var gberr gberrors.IException
	if errors.As(err, &gberr) && gberr.ExceptionStatusCode() >= 500 {
		return 2
	}
	return 1
}

func verb(shares int64) string {
	if shares < 0 {
		return "sold"
	}
	return "bought"
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func writeSnapshot(w io.Writer, snap *portfolio.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "SYMBOL\tNAME\tSHARES\tPRICE\tVALUE\tAVG COST\tGAIN\tCHANGE\t")
	for _, h := range snap.Holdings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			h.Symbol,
			h.Name,
			formatShares(h.Shares),
			formatMoney(h.Price),
			formatMoney(h.MarketValue),
			formatMoney(h.AverageCost),
			formatMoney(h.UnrealizedGain),
			formatPercent(h.PercentChange),
		)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Cash\t%s\n", formatMoney(snap.Cash))
	fmt.Fprintf(tw, "Holdings\t%s\n", formatMoney(snap.HoldingsValue))
	fmt.Fprintf(tw, "Total value\t%s\n", formatMoney(snap.TotalValue))
	fmt.Fprintf(tw, "Unrealized gain\t%s\n", formatMoney(snap.UnrealizedGain))
	fmt.Fprintf(tw, "Realized gain\t%s\n", formatMoney(snap.RealizedGain))
	fmt.Fprintf(tw, "Total gain\t%s\n", formatMoney(snap.TotalGain))

	if err := tw.Flush(); err != nil {
		return err
	}

	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "ALLOCATION\tVALUE\tWEIGHT\t")
	for _, a := range snap.Allocation {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", a.Label, formatMoney(a.Value), formatPercent(a.Percent))
	}

	return tw.Flush()
}

func writeHistory(w io.Writer, entries []models.LedgerEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "WHEN\tSYMBOL\tNAME\tSHARES\tPRICE\tTOTAL")
	for _, e := range entries {
		symbol, shares, px := e.Symbol, formatShares(e.Shares), formatMoney(e.Price)
		if e.IsCashMovement() {
			symbol, shares, px = "-", "-", "-"
		}

		fmt.Fprintf(tw, "%s (%s)\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			humanize.Time(e.CreatedAt),
			symbol,
			e.Name,
			shares,
			px,
			formatMoney(e.CostTotal),
		)
	}

	return tw.Flush()
}
