package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kevinfinalboss/lxcferry/internal/history"
	"github.com/spf13/cobra"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Mostra o histórico de migrações",
	Long:  "Lista as execuções recentes registradas no histórico ou os resultados de uma execução",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		store, err := history.Open(cfg.History.Path, log)
		if err != nil {
			log.Error("history_unavailable").Str("path", cfg.History.Path).Err(err).Send()
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			err = printRunResults(cmd, store, args[0], out)
		} else {
			err = printRecentRuns(cmd, store, out)
		}
		if err != nil {
			return err
		}

		log.Debug("operation_completed").Str("operation", "status").Send()
		return nil
	},
}

func init() {
	statusCmd.Short = getMessage("cmd_status_short")
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "quantidade de execuções listadas")
}

func printRecentRuns(cmd *cobra.Command, store *history.Store, out io.Writer) error {
	runs, err := store.Recent(cmd.Context(), statusLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		log.Info("history_empty").Send()
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXECUÇÃO\tINÍCIO\tDESTINO\tTOTAL\tSUCESSOS\tFALHAS\tDURAÇÃO\tMODO")
	for _, run := range runs {
		mode := "real"
		if run.DryRun {
			mode = "dry-run"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			run.ID,
			humanize.Time(run.StartedAt),
			run.DestinationHost,
			run.Total,
			run.Success,
			run.Failure,
			run.Duration.Round(time.Second),
			mode,
		)
	}
	return w.Flush()
}

func printRunResults(cmd *cobra.Command, store *history.Store, runID string, out io.Writer) error {
	results, err := store.Results(cmd.Context(), runID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONTAINER\tRESULTADO\tETAPA\tRETENTATIVAS\tTAMANHO\tERRO")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Name,
			r.Outcome,
			r.FailedStep,
			r.Retries,
			humanize.IBytes(r.SourceSize),
			r.Error,
		)
	}
	return w.Flush()
}
