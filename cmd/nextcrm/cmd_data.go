package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	nextcrm "github.com/MrEthical07/nextcrm"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show contract statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		var (
			stats      *nextcrm.DashboardStats
			currencies *nextcrm.Page[nextcrm.Currency]
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			stats, err = app.client.DashboardStats(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			currencies, err = app.client.ListCurrencies(gctx, nextcrm.ListParams{})
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		base := ""
		for _, c := range currencies.Results {
			if c.IsBaseCurrency {
				base = c.CurrencyCode
			}
		}
		return stdout(stats, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "TOTAL CONTRACTS\t%d\n", stats.TotalContracts)
			fmt.Fprintf(tw, "ACTIVE\t%d\n", stats.ActiveContracts)
			fmt.Fprintf(tw, "COMPLETED\t%d\n", stats.CompletedContracts)
			fmt.Fprintf(tw, "OVERDUE\t%d\n", stats.OverdueContracts)
			fmt.Fprintf(tw, "TOTAL VALUE\t%s %s\n", stats.TotalValue, base)
			fmt.Fprintf(tw, "COUNTERPARTIES\t%d\n", stats.TotalCounterparties)

			statuses := make([]string, 0, len(stats.StatusDistribution))
			for s := range stats.StatusDistribution {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				d := stats.StatusDistribution[s]
				fmt.Fprintf(tw, "  %s\t%d (%.1f%%)\n", s, d.Count, d.Percentage)
			}
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search contracts, counterparties, commodities and traders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		res, err := app.client.GlobalSearch(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return stdout(res, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "KIND\tID\tNAME")
			for _, c := range res.Contracts {
				fmt.Fprintf(tw, "contract\t%s\t%s (%s)\n", c.ID, c.ContractNumber, c.Status)
			}
			for _, c := range res.Counterparties {
				fmt.Fprintf(tw, "counterparty\t%d\t%s\n", c.ID, c.CounterpartyName)
			}
			for _, c := range res.Commodities {
				fmt.Fprintf(tw, "commodity\t%d\t%s\n", c.ID, c.CommodityNameShort)
			}
			for _, t := range res.Traders {
				fmt.Fprintf(tw, "trader\t%d\t%s\n", t.ID, t.TraderName)
			}
			fmt.Fprintf(tw, "\n%d results\n", res.Total())
		})
	},
}

// referenceKind lists one reference collection; name and code are gjson
// paths into each result.
type referenceKind struct {
	name string
	code string
	list func(ctx context.Context, p nextcrm.ListParams) (any, error)
}

func pageOf[T any](fn func(context.Context, nextcrm.ListParams) (*nextcrm.Page[T], error)) func(context.Context, nextcrm.ListParams) (any, error) {
	return func(ctx context.Context, p nextcrm.ListParams) (any, error) {
		return fn(ctx, p)
	}
}

func referenceKinds(c *nextcrm.Client) map[string]referenceKind {
	return map[string]referenceKind{
		"counterparties":      {"counterparty_name", "counterparty_code", pageOf(c.ListCounterparties)},
		"commodities":         {"commodity_name_short", "commodity_code", pageOf(c.ListCommodities)},
		"traders":             {"trader_name", "employee_id", pageOf(c.ListTraders)},
		"currencies":          {"currency_name", "currency_code", pageOf(c.ListCurrencies)},
		"cost-centers":        {"cost_center_name", "description", pageOf(c.ListCostCenters)},
		"sociedades":          {"sociedad_name", "tax_id", pageOf(c.ListSociedades)},
		"commodity-groups":    {"commodity_group_name", "description", pageOf(c.ListCommodityGroups)},
		"commodity-types":     {"commodity_type_name", "description", pageOf(c.ListCommodityTypes)},
		"exchange-rates":      {"rate", "rate_date", pageOf(c.ListExchangeRates)},
		"contract-amendments": {"amendment_type", "contract", pageOf(c.ListContractAmendments)},
	}
}

var (
	referenceSearch   string
	referenceActive   bool
	referencePage     int
	referencePageSize int
)

var referenceCmd = &cobra.Command{
	Use:     "reference <kind>",
	Aliases: []string{"ref"},
	Short:   "List reference data",
	Long: `List one kind of reference data: counterparties, commodities, traders,
currencies, cost-centers, sociedades, commodity-groups, commodity-types,
exchange-rates or contract-amendments.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds := referenceKinds(app.client)
		kind, ok := kinds[args[0]]
		if !ok {
			names := make([]string, 0, len(kinds))
			for k := range kinds {
				names = append(names, k)
			}
			sort.Strings(names)
			return fmt.Errorf("unknown kind %q, want one of %s", args[0], strings.Join(names, ", "))
		}

		params := nextcrm.ListParams{Search: referenceSearch, Page: referencePage, PageSize: referencePageSize}
		if cmd.Flags().Changed("active") {
			params.Extra = map[string][]string{"is_active": {fmt.Sprint(referenceActive)}}
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		page, err := kind.list(ctx, params)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(page)
		if err != nil {
			return err
		}
		return stdout(page, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "ID\tNAME\tCODE")
			doc := gjson.ParseBytes(raw)
			doc.Get("results").ForEach(func(_, row gjson.Result) bool {
				fmt.Fprintf(tw, "%s\t%s\t%s\n",
					row.Get("id").String(), orDash(row.Get(kind.name).String()), orDash(row.Get(kind.code).String()))
				return true
			})
			fmt.Fprintf(tw, "\n%d total\n", doc.Get("count").Int())
		})
	},
}

func init() {
	f := referenceCmd.Flags()
	f.StringVarP(&referenceSearch, "search", "s", "", "Free-text search")
	f.BoolVar(&referenceActive, "active", true, "Filter on is_active when set")
	f.IntVar(&referencePage, "page", 0, "Page number")
	f.IntVar(&referencePageSize, "page-size", 0, "Page size")
}
