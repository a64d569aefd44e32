package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/drought-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/couchcryptid/drought-dashboard/internal/export"
	"github.com/couchcryptid/drought-dashboard/internal/insight"
	"github.com/couchcryptid/drought-dashboard/internal/query"
	"github.com/spf13/cobra"
)

func newSummaryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show district KPIs and tier distribution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.sync(cmd.Context()); err != nil {
				return err
			}
			s := domain.SummarizeWithPlan(a.store.Villages().Villages, a.store.Allocation().Plan)
			a.print(cmd, summaryMarkdown(s))
			return nil
		},
	}
}

func summaryMarkdown(s domain.Summary) string {
	c, w, sf := s.Distribution()
	var b strings.Builder
	b.WriteString("# District Overview\n\n")
	fmt.Fprintf(&b, "- Villages: %d\n", s.Total)
	fmt.Fprintf(&b, "- Critical: %d (%.1f%%)\n", s.Critical, c)
	fmt.Fprintf(&b, "- Warning: %d (%.1f%%)\n", s.Warning, w)
	fmt.Fprintf(&b, "- Safe: %d (%.1f%%)\n", s.Safe, sf)
	fmt.Fprintf(&b, "- Population: %d\n", s.TotalPopulation)
	fmt.Fprintf(&b, "- Population at risk: %d\n", s.PopulationAtRisk)
	fmt.Fprintf(&b, "- Avg rainfall deviation: %.1f%%\n", s.AvgRainfallDevPct)
	fmt.Fprintf(&b, "- Avg groundwater level: %.1f m\n", s.AvgGroundwaterLevel)
	fmt.Fprintf(&b, "- Tankers assigned: %d\n", s.TotalTankers)
	fmt.Fprintf(&b, "- Water allocated: %.0f L\n", s.TotalAllocatedLiters)
	return b.String()
}

// gridFlags are the search, filter, and sort options shared by villages and
// export.
type gridFlags struct {
	search string
	status string
	sort   string
	desc   bool
	page   int
}

func (f *gridFlags) register(cmd *cobra.Command, withPage bool) {
	cmd.Flags().StringVar(&f.search, "search", "", "case-insensitive match on village name or id")
	cmd.Flags().StringVar(&f.status, "status", "all", "tier filter: all, critical, warning, safe")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sort column: name, id, population, wsi, gw_current_level, rainfall_dev_pct, priority_score")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	if withPage {
		cmd.Flags().IntVar(&f.page, "page", 1, "page number")
	}
}

func (f *gridFlags) view(pageSize int) (*query.View, error) {
	status, err := query.ParseStatus(f.status)
	if err != nil {
		return nil, err
	}
	field, err := query.ParseSortField(f.sort)
	if err != nil {
		return nil, err
	}
	dir := query.Asc
	if f.desc {
		dir = query.Desc
	}

	v := query.NewView(pageSize)
	v.SetSearch(f.search)
	v.SetStatus(status)
	v.SetSortDirection(field, dir)
	v.SetPage(f.page)
	return v, nil
}

func newVillagesCommand(a *app) *cobra.Command {
	var flags gridFlags
	cmd := &cobra.Command{
		Use:   "villages",
		Short: "List villages with their water-stress tier",
		Example: `  droughtctl villages --status critical
  droughtctl villages --sort wsi --desc --page 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := flags.view(a.cfg.PageSize)
			if err != nil {
				return err
			}
			if err := a.sync(cmd.Context()); err != nil {
				return err
			}
			villages := a.store.Villages().Villages
			a.print(cmd, villagesMarkdown(villages, view.Page(villages), a.store.Allocation().Plan))
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}

func villagesMarkdown(all []domain.Village, page query.Page, plan domain.AllocationPlan) string {
	if len(all) == 0 {
		return "No villages reported.\n"
	}
	if page.Total == 0 {
		return "No villages match the filters.\n"
	}

	var b strings.Builder
	b.WriteString("| Name | ID | Population | WSI | Status | Tankers |\n")
	b.WriteString("|---|---|---:|---:|---|---:|\n")
	for _, v := range page.Items {
		fmt.Fprintf(&b, "| %s | %s | %d | %.1f | %s | %d |\n",
			escapeCell(v.Name), escapeCell(v.ID), v.Population, v.WSI, v.Tier().Label(), plan.TankersFor(v.ID))
	}
	fmt.Fprintf(&b, "\nPage %d of %d (%d villages)\n", page.Page, page.TotalPages, page.Total)
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func newExportCommand(a *app) *cobra.Command {
	var (
		flags gridFlags
		out   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered village list as CSV",
		Long:  "Write every village matching the filters, in sorted order, as CSV. Use -o - for stdout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := flags.view(a.cfg.PageSize)
			if err != nil {
				return err
			}
			if err := a.sync(cmd.Context()); err != nil {
				return err
			}
			rows := view.Rows(a.store.Villages().Villages)

			if out == "-" {
				return export.WriteCSV(cmd.OutOrStdout(), rows)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := export.WriteCSV(f, rows); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close export file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d villages to %s\n", len(rows), out)
			return nil
		},
	}
	flags.register(cmd, false)
	cmd.Flags().StringVarP(&out, "output", "o", export.Filename(), "output file")
	return cmd
}

func newAllocationCommand(a *app) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "allocation",
		Short: "Show the tanker dispatch plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.sync(cmd.Context()); err != nil {
				return err
			}
			as := a.store.Allocation()
			if as.Err != nil {
				return errors.New(backend.UserMessage(as.Err, backend.MsgAllocationUnavailable))
			}
			a.print(cmd, allocationMarkdown(as.Plan, domain.FilterAllocations(as.Plan.Allocations, search)))
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive match on village name or id")
	return cmd
}

func allocationMarkdown(plan domain.AllocationPlan, entries []domain.AllocationEntry) string {
	var b strings.Builder
	b.WriteString("# Tanker Dispatch\n\n")
	fmt.Fprintf(&b, "%d villages in need, %d tankers assigned, %.0f L allocated.\n\n",
		plan.TotalVillagesInNeed, plan.TotalTankersAssigned, plan.TotalLiters())
	if len(entries) == 0 {
		b.WriteString("No dispatch entries.\n")
		return b.String()
	}
	b.WriteString("| Village | ID | Tanker | Tankers | Deficit (L) | Allocated (L) | Priority |\n")
	b.WriteString("|---|---|---|---:|---:|---:|---:|\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %.0f | %.0f | %.1f |\n",
			escapeCell(e.VillageName), escapeCell(e.VillageID), escapeCell(e.TankerID),
			e.TankersAllocated, e.DeficitLiters, e.AllocatedLiters, e.PriorityScore)
	}
	return b.String()
}

func newIncidentsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "incidents",
		Short: "List critical and warning incidents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.sync(cmd.Context()); err != nil {
				return err
			}
			incidents := domain.DeriveIncidents(a.store.Villages().Villages)
			if len(incidents) == 0 {
				a.print(cmd, "All villages are within safe limits.\n")
				return nil
			}
			var b strings.Builder
			for _, inc := range incidents {
				fmt.Fprintf(&b, "- **%s** (%s): %s\n", inc.Kind, inc.VillageID, inc.Message)
			}
			a.print(cmd, b.String())
			return nil
		},
	}
}

// findVillage syncs and looks up id in the store.
func (a *app) findVillage(cmd *cobra.Command, id string) (domain.Village, error) {
	if err := a.sync(cmd.Context()); err != nil {
		return domain.Village{}, err
	}
	for _, v := range a.store.Villages().Villages {
		if v.ID == id {
			return v, nil
		}
	}
	return domain.Village{}, fmt.Errorf("unknown village %q", id)
}

func newInsightCommand(a *app) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "insight <village-id>",
		Short: "Generate an advisory for one village",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			language, err := domain.ParseLanguage(lang)
			if err != nil {
				return err
			}
			v, err := a.findVillage(cmd, args[0])
			if err != nil {
				return err
			}

			m := insight.New(a.client, a.cfg.InsightTimeout, a.logger, a.metrics)
			defer m.Shutdown()
			m.Open(v, language)
			m.Wait()

			s := m.State()
			if s.Status == insight.Error {
				return errors.New(s.ErrorMessage)
			}
			a.print(cmd, fmt.Sprintf("# %s (%s)\n\n%s\n", v.Name, v.Tier().Label(), s.Text))
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", string(domain.English), "advisory language: English, Hindi, Marathi")
	return cmd
}

func newForecastCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forecast <village-id>",
		Short: "Show the weather forecast for one village",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.findVillage(cmd, args[0])
			if err != nil {
				return err
			}
			days, err := a.client.FetchForecast(cmd.Context(), v.ID)
			if err != nil {
				return errors.New(backend.UserMessage(err, backend.MsgForecastUnavailable))
			}

			var b strings.Builder
			fmt.Fprintf(&b, "# Forecast for %s\n\n", v.Name)
			if len(days) == 0 {
				b.WriteString("No forecast available.\n")
			} else {
				b.WriteString("| Date | Max (°C) | Min (°C) | Rain (mm) | Humidity (%) |\n")
				b.WriteString("|---|---:|---:|---:|---:|\n")
				for _, d := range days {
					fmt.Fprintf(&b, "| %s | %.1f | %.1f | %.1f | %.0f |\n", d.Date, d.TempMax, d.TempMin, d.RainfallMM, d.HumidityAvg)
				}
			}
			a.print(cmd, b.String())
			return nil
		},
	}
}
