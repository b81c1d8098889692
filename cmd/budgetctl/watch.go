package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"budgetsim/internal/broadcast"
	"budgetsim/internal/core"
)

func (a *app) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll a running server and print family balances",
		Long: `Poll GET /families/ on a running server and print the family table
every interval, the same fallback browsers use when they cannot hold a
stream open.`,
		Args: cobra.NoArgs,
		RunE: a.runWatch,
	}
	cmd.Flags().Duration("interval", broadcast.DefaultPollInterval, "time between polls")
	cmd.Flags().Int("count", 0, "stop after this many snapshots, 0 to run until interrupted")
	_ = a.v.BindPFlag("poll.interval", cmd.Flags().Lookup("interval"))
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, _ []string) error {
	count, _ := cmd.Flags().GetInt("count")
	interval := a.v.GetDuration("poll.interval")

	poller := broadcast.NewPoller(newRemote(a.serverURL()), interval, a.logger)
	sub, err := poller.Subscribe(cmd.Context())
	if err != nil {
		return fmt.Errorf("watch %s: %w", a.serverURL(), err)
	}
	defer sub.Close()

	out := cmd.OutOrStdout()
	seen := 0
	for snap := range sub.C {
		printFamilies(out, time.Now(), snap.Data)
		seen++
		if count > 0 && seen >= count {
			return nil
		}
	}
	return nil
}

func printFamilies(w io.Writer, at time.Time, families []core.Family) {
	fmt.Fprintf(w, "# %s\n", at.Format(time.TimeOnly))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBANK\tFOOD PAID")
	for _, f := range families {
		paid := ""
		for wk := 1; wk <= core.WeeksPerPeriod; wk++ {
			if f.FoodPaid(wk) {
				paid += "x"
			} else {
				paid += "."
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.ID, f.Name, core.Dollars(f.BankTotal), paid)
	}
	_ = tw.Flush()
}
