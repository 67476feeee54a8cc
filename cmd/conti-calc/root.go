package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"conti/internal/balance"
	"conti/internal/core"
)

func execute(args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var output string

	rootCmd := &cobra.Command{
		Use:           "conti-calc",
		Short:         "Compute group balances from a snapshot file",
		Long:          "Reads members, expenses and settlements from a YAML or JSON snapshot and prints who owes whom.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return validateOutputFormat(output)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	rootCmd.AddCommand(newBalancesCmd())
	rootCmd.AddCommand(newSettledCmd())
	return rootCmd
}

func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "text" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'text' or 'json'", output)
	}
	return nil
}

// Outstanding is nil unless --settled was given; a fully settled group
// still encodes it as an empty list.
type balancesOutput struct {
	Debts       []core.DebtEdge       `json:"debts"`
	Outstanding *[]core.DebtEdge      `json:"outstanding,omitempty"`
	Positions   []core.MemberPosition `json:"positions"`
	TotalSpent  core.Money            `json:"total_spent"`
}

func newBalancesCmd() *cobra.Command {
	var (
		file    string
		settled bool
	)

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Print the netted debts and member positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := loadSnapshot(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			expenses, err := snap.expenses()
			if err != nil {
				return err
			}
			members := snap.members()

			out := balancesOutput{
				Debts:     balance.ComputeBalances(members, expenses),
				Positions: balance.NetPositions(members, expenses),
			}
			for _, e := range expenses {
				out.TotalSpent = out.TotalSpent.Add(e.Amount)
			}
			if settled {
				outstanding := balance.ApplySettlements(out.Debts, snap.settlements())
				out.Outstanding = &outstanding
			}

			w := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(w, out)
			}
			return printBalances(w, out, settled)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Snapshot file (YAML or JSON, - for stdin)")
	cmd.Flags().BoolVar(&settled, "settled", false, "Also print debts after recorded settlements")
	return cmd
}

func newSettledCmd() *cobra.Command {
	var file, from, to string

	cmd := &cobra.Command{
		Use:   "settled",
		Short: "Print how much one member has paid another, net of payments back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if from == "" || to == "" {
				return fmt.Errorf("both --from and --to are required")
			}
			snap, err := loadSnapshot(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			amount := balance.NetSettledAmount(core.MemberID(from), core.MemberID(to), snap.settlements())

			w := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(w, map[string]any{"from": from, "to": to, "amount": amount})
			}
			_, err = fmt.Fprintf(w, "%s -> %s: %s\n", from, to, amount)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Snapshot file (YAML or JSON, - for stdin)")
	cmd.Flags().StringVar(&from, "from", "", "Paying member")
	cmd.Flags().StringVar(&to, "to", "", "Receiving member")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBalances(w io.Writer, out balancesOutput, settled bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	printEdges(tw, "Debts", out.Debts)
	if settled {
		fmt.Fprintln(tw)
		printEdges(tw, "Outstanding", *out.Outstanding)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "MEMBER\tPAID\tOWED\tNET")
	for _, p := range out.Positions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Member, p.Paid, p.Owed, p.Net)
	}
	fmt.Fprintf(tw, "\nTotal spent: %s\n", out.TotalSpent)
	return tw.Flush()
}

func printEdges(w io.Writer, title string, edges []core.DebtEdge) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(edges) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, e := range edges {
		fmt.Fprintf(w, "  %s owes %s\t%s\n", e.From, e.To, e.Amount)
	}
}
