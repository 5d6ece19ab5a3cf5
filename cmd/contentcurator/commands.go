package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"ContentCurator/internal/cache"
	"ContentCurator/internal/config"
	"ContentCurator/internal/domain"
	"ContentCurator/internal/infrastructure/storage"
)

var (
	runIterations int
	runSources    []string
	runNoCache    bool
	runTop        int
	reportRaw     bool
)

// runCmd executes one evolution run for a seed query
var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Run the pipeline for a seed query",
	Long: `Discover content for the seed query, extract and score it, then refine
the query until the iteration budget is spent, quality drops, or no new
query can be derived. Results land in the configured output directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		application, _, err := newApplication(ctx, func(cfg *config.Config) {
			if runIterations > 0 {
				cfg.Evolution.MaxIterations = runIterations
			}
			if len(runSources) > 0 {
				cfg.Sources.Enabled = nil
				for _, s := range runSources {
					cfg.Sources.Enabled = append(cfg.Sources.Enabled, domain.SourceType(strings.ToLower(strings.TrimSpace(s))))
				}
			}
		})
		if err != nil {
			return err
		}
		defer application.Close()

		cfg := application.Config()
		rc := cfg.RunConfig()
		if runNoCache {
			rc.UseCache = false
		}

		run, runErr := application.RunWith(ctx, strings.Join(args, " "), rc)
		if run.ID != "" {
			top := runTop
			if top <= 0 {
				top = 10
			}
			fmt.Println(renderSummary(run, top))
			if runErr == nil {
				fmt.Println(mutedStyle.Render("results: " + filepath.Join(cfg.Output.Dir, storage.RunDirName(run))))
			}
		}
		return runErr
	},
}

// watchCmd re-runs the configured seed queries on a schedule
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the configured seed queries on a schedule",
	Long: `Run scheduler.seedQueries on scheduler.cronExpression until interrupted.
Edits to the config file apply from the next scheduled run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		application, path, err := newApplication(ctx, nil)
		if err != nil {
			return err
		}
		defer application.Close()
		return application.Watch(ctx, path)
	},
}

// cacheCmd groups cache maintenance
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:       "clear [scope]",
	Short:     "Remove cached entries, optionally for a single scope",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: scopeNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		application, _, err := newApplication(ctx, nil)
		if err != nil {
			return err
		}
		defer application.Close()

		scope := ""
		if len(args) == 1 {
			scope = args[0]
		}
		if err := application.ClearCache(ctx, scope); err != nil {
			return err
		}
		if scope == "" {
			scope = "all scopes"
		}
		fmt.Println(okStyle.Render("cleared " + scope))
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show live and expired entries per scope",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		application, _, err := newApplication(ctx, nil)
		if err != nil {
			return err
		}
		defer application.Close()

		stats, err := application.CacheStats(ctx)
		if err != nil {
			return err
		}
		rows := [][]string{{"Scope", "Live", "Expired"}}
		for _, scope := range cache.Scopes() {
			counts := stats[scope]
			rows = append(rows, []string{string(scope), fmt.Sprint(counts[0]), fmt.Sprint(counts[1])})
		}
		fmt.Println(renderRows(rows))
		return nil
	},
}

// reportCmd renders a saved run's report in the terminal
var reportCmd = &cobra.Command{
	Use:   "report [run-dir]",
	Short: "Render the report of a saved run",
	Long: `Render the markdown report of a saved run. Without an argument the most
recent run in the output directory is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		dir := ""
		if len(args) == 1 {
			dir = args[0]
		} else if dir, err = storage.LatestRunDir(cfg.Output.Dir); err != nil {
			return err
		}

		run, err := storage.LoadRun(dir)
		if err != nil {
			return err
		}
		doc := storage.RenderReport(run, cfg.Output.TopN)
		if reportRaw {
			fmt.Print(doc)
			return nil
		}

		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return fmt.Errorf("report renderer: %w", err)
		}
		out, err := renderer.Render(doc)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	runCmd.Flags().IntVarP(&runIterations, "iterations", "n", 0, "maximum iterations (overrides evolution.maxIterations)")
	runCmd.Flags().StringSliceVarP(&runSources, "sources", "s", nil, "source types to query: "+sourceTypeList())
	runCmd.Flags().BoolVar(&runNoCache, "no-cache", false, "ignore cached entries for this run")
	runCmd.Flags().IntVar(&runTop, "top", 10, "high quality items to print")

	reportCmd.Flags().BoolVar(&reportRaw, "raw", false, "print the markdown without styling")

	cacheCmd.AddCommand(cacheClearCmd, cacheStatsCmd)
}

func scopeNames() []string {
	var names []string
	for _, s := range cache.Scopes() {
		names = append(names, string(s))
	}
	return names
}

func sourceTypeList() string {
	var names []string
	for _, s := range domain.KnownSourceTypes() {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
