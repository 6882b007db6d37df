package main

import (
	"fmt"
	"text/tabwriter"

	nextcrm "github.com/MrEthical07/nextcrm"
	"github.com/spf13/cobra"
)

var (
	contractFilters nextcrm.ContractFilters
	cancelReason    string
)

var contractsCmd = &cobra.Command{
	Use:     "contracts",
	Aliases: []string{"contract", "ct"},
	Short:   "List and manage trade contracts",
}

var contractsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contracts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		page, err := app.client.ListContracts(ctx, contractFilters)
		if err != nil {
			return err
		}
		return stdout(page, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "NUMBER\tSTATUS\tCOUNTERPARTY\tCOMMODITY\tQUANTITY\tTOTAL\tID")
			for _, c := range page.Results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s %s\t%s\n",
					c.ContractNumber, c.Status, orDash(c.CounterpartyName), orDash(c.CommodityName),
					c.Quantity, c.TotalValue, c.CurrencyCode, c.ID)
			}
			fmt.Fprintf(tw, "\n%d of %d\n", len(page.Results), page.Count)
		})
	},
}

var contractsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		c, err := app.client.GetContract(ctx, args[0])
		if err != nil {
			return err
		}
		return stdout(c, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "NUMBER\t%s\n", c.ContractNumber)
			fmt.Fprintf(tw, "STATUS\t%s\n", c.Status)
			fmt.Fprintf(tw, "TRADER\t%s\n", orDash(c.TraderName))
			fmt.Fprintf(tw, "COUNTERPARTY\t%s\n", orDash(c.CounterpartyName))
			fmt.Fprintf(tw, "COMMODITY\t%s\n", orDash(c.CommodityName))
			fmt.Fprintf(tw, "QUANTITY\t%s %s\n", c.Quantity, c.UnitOfMeasure)
			fmt.Fprintf(tw, "PRICE\t%s %s\n", c.Price, c.CurrencyCode)
			fmt.Fprintf(tw, "TOTAL\t%s %s\n", c.TotalValue, c.CurrencyCode)
			fmt.Fprintf(tw, "DELIVERY\t%s to %s (%s)\n", c.DeliveryPeriodStart, c.DeliveryPeriodEnd, orDash(c.DeliveryTerms))
			fmt.Fprintf(tw, "NOTES\t%s\n", orDash(c.Notes))
		})
	},
}

var contractsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a draft or pending contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		msg, err := app.client.ApproveContract(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

var contractsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		msg, err := app.client.CancelContract(ctx, args[0], cancelReason)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

func init() {
	f := contractsListCmd.Flags()
	f.StringVar(&contractFilters.Status, "status", "", "Filter by status (draft, pending_approval, approved, ...)")
	f.Int64Var(&contractFilters.Trader, "trader", 0, "Filter by trader id")
	f.Int64Var(&contractFilters.Counterparty, "counterparty", 0, "Filter by counterparty id")
	f.Int64Var(&contractFilters.CommodityGroup, "commodity-group", 0, "Filter by commodity group id")
	f.StringVar(&contractFilters.ContractDateAfter, "after", "", "Contract date on or after (YYYY-MM-DD)")
	f.StringVar(&contractFilters.ContractDateBefore, "before", "", "Contract date on or before (YYYY-MM-DD)")
	f.StringVarP(&contractFilters.Search, "search", "s", "", "Free-text search")
	f.StringVar(&contractFilters.Ordering, "ordering", "", "Sort field, prefix with - for descending")
	f.IntVar(&contractFilters.Page, "page", 0, "Page number")
	f.IntVar(&contractFilters.PageSize, "page-size", 0, "Page size")

	contractsCancelCmd.Flags().StringVarP(&cancelReason, "reason", "r", "", "Cancellation reason appended to the notes")

	contractsCmd.AddCommand(contractsListCmd, contractsGetCmd, contractsApproveCmd, contractsCancelCmd)
}
