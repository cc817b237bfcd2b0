package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cn-dashboard/internal/models"
	"cn-dashboard/internal/services"
)

const familyOverview = "overview"

func (cli *CLI) newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the daily series and summary of one CN family",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.v.BindPFlags(cmd.Flags())
		},
		RunE: cli.runSummary,
	}

	cmd.Flags().String("start", "", "First day of the range (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Last day of the range (YYYY-MM-DD)")
	cmd.Flags().String("unit", string(models.UnitCount), "Unit: count, pack, piece or currency")
	cmd.Flags().String("family", string(models.FamilyAggregate), "Family: aggregate, missing, degraded or overview")
	cmd.Flags().String("locale", "en", "Locale used for number formatting")

	return cmd
}

func (cli *CLI) newWidgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "widgets",
		Short: "Print the summary of every dashboard widget",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.v.BindPFlags(cmd.Flags())
		},
		RunE: cli.runWidgets,
	}

	cmd.Flags().String("start", "", "First day of the range (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Last day of the range (YYYY-MM-DD)")
	cmd.Flags().String("locale", "en", "Locale used for number formatting")

	return cmd
}

func (cli *CLI) dateRange() (models.DateRange, error) {
	start, end := cli.v.GetString("start"), cli.v.GetString("end")
	if start == "" || end == "" {
		return models.DateRange{}, fmt.Errorf("both --start and --end are required")
	}
	return models.ParseDateRange(start, end)
}

func (cli *CLI) runSummary(cmd *cobra.Command, args []string) error {
	rng, err := cli.dateRange()
	if err != nil {
		return err
	}
	unit := models.Unit(cli.v.GetString("unit"))
	family := cli.v.GetString("family")

	src := cli.source()
	fetcher, err := cli.newFetcher(src, cli.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), src.Timeout)
	defer cancel()

	records, err := fetcher.FetchReport(ctx, rng.Start, rng.End)
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}

	f := services.NewFormatter(cli.v.GetString("locale"))
	if family == familyOverview {
		agg, err := services.NewAggregator(unit, models.FamilyAggregate)
		if err != nil {
			return err
		}
		result, err := agg.Overview(records)
		if err != nil {
			return err
		}
		return cli.reporter.Summary(overviewReport(rng, unit, f, result))
	}

	agg, err := services.NewAggregator(unit, models.Family(family))
	if err != nil {
		return err
	}
	result, err := agg.Aggregate(records)
	if err != nil {
		return err
	}
	return cli.reporter.Summary(detailReport(rng, unit, models.Family(family), f, result))
}

// runWidgets drives a dashboard through one fetch and prints each widget
// in its default selection.
func (cli *CLI) runWidgets(cmd *cobra.Command, args []string) error {
	rng, err := cli.dateRange()
	if err != nil {
		return err
	}

	src := cli.source()
	fetcher, err := cli.newFetcher(src, cli.logger)
	if err != nil {
		return err
	}

	dashboard := services.NewDashboard(fetcher, cli.logger, services.DashboardOptions{
		FetchTimeout: src.Timeout,
		Locale:       cli.v.GetString("locale"),
	})
	defer dashboard.Close()

	done, err := dashboard.SetRange(&rng.Start, &rng.End)
	if err != nil {
		return err
	}
	select {
	case <-done:
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}

	state := dashboard.State()
	if state.Status == models.StatusError {
		return fmt.Errorf("fetch report: %s", state.Error)
	}

	views, err := dashboard.ViewsFor(cmd.Context(), state)
	if err != nil {
		return err
	}
	return cli.reporter.Widgets(widgetsReportOf(rng, state, views, dashboard.Formatter()))
}
