package main

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/VariantSync/DiffDetective-sub004/internal/config"
	"github.com/VariantSync/DiffDetective-sub004/internal/dataset"
	"github.com/VariantSync/DiffDetective-sub004/internal/gitio"
	"github.com/VariantSync/DiffDetective-sub004/internal/mining"
	"github.com/VariantSync/DiffDetective-sub004/internal/store"
	"github.com/VariantSync/DiffDetective-sub004/linegraph"
	"github.com/VariantSync/DiffDetective-sub004/sat"
)

var (
	dataDir     string
	dbPath      string
	workers     int
	repos       int
	commitLimit int
	noCompress  bool
	metricsFile string
)

func initMineFlags() {
	f := mineCmd.Flags()
	f.StringVar(&dataDir, "data", "", "Output and clone directory (default $DIFFDETECTIVE_DATA or ./data)")
	f.StringVar(&dbPath, "db", "", "Result database (default <data>/results.db)")
	f.IntVar(&workers, "workers", 0, "Commits analyzed concurrently per repository (default $DIFFDETECTIVE_WORKERS or the number of CPUs)")
	f.IntVar(&repos, "repos", 0, "Repositories mined concurrently (default $DIFFDETECTIVE_REPOS or 2)")
	f.IntVar(&commitLimit, "limit", 0, "Mine at most this many commits per repository")
	f.BoolVar(&noCompress, "no-compress", false, "Write plain .lg files instead of .lg.zst")
	f.StringVar(&metricsFile, "metrics-file", "", "Write prometheus metrics to this file when done")
}

func runMine(cmd *cobra.Command, args []string) error {
	cfg := config.FromArgs(dataDir, dbPath, logLevel, workers)
	if repos > 0 {
		cfg.Repos = repos
	}
	if cmd.Flags().Changed("limit") {
		cfg.CommitLimit = commitLimit
	}
	if cmd.Flags().Changed("no-compress") {
		cfg.Compress = !noCompress
	}
	if cmd.Flags().Changed("no-collapse") {
		cfg.Collapse = !noCollapse
	}
	if cmd.Flags().Changed("ignore-empty") {
		cfg.IgnoreEmpty = ignoreEmpty
	}
	if cmd.Flags().Changed("format") {
		cfg.NodeFormat = nodeFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg, err := dataset.Load(args[0])
	if err != nil {
		return err
	}
	trs, err := selectedTransformers()
	if err != nil {
		return err
	}
	nodes, err := linegraph.NodeFormatByName(cfg.NodeFormat, sat.New())
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Database())
	if err != nil {
		return err
	}
	defer db.Close()

	promReg := prometheus.NewRegistry()
	metrics, err := mining.NewMetrics(promReg)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"datasets": len(reg.Datasets),
		"workers":  cfg.Workers,
		"db":       db.Path(),
	}).Info("starting")

	summaries := make([]*mining.Summary, len(reg.Datasets))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Repos)
	for i, ds := range reg.Datasets {
		g.Go(func() error {
			resolver, err := ds.MacroResolver()
			if err != nil {
				return err
			}
			repo, err := gitio.OpenOrClone(ctx, ds.ClonePath(cfg.DataDir), ds.URL)
			if err != nil {
				return fmt.Errorf("dataset %s: %w", ds.Name, err)
			}
			m := mining.NewMiner(log, db, metrics, mining.Options{
				OutputDir:    filepath.Join(cfg.DataDir, "linegraphs"),
				Compress:     cfg.Compress,
				Workers:      cfg.Workers,
				CommitLimit:  cfg.CommitLimit,
				Parse:        cfg.ParseOptions(resolver),
				Transformers: trs,
				Nodes:        nodes,
			})
			sum, err := m.Mine(ctx, repo, ds)
			if err != nil {
				return err
			}
			summaries[i] = sum
			return nil
		})
	}
	err = g.Wait()

	if metricsFile != "" {
		if werr := mining.WriteMetrics(metricsFile, promReg); werr != nil {
			log.WithError(werr).Warn("writing metrics")
		}
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, s := range summaries {
		fmt.Fprintf(w, "%s: %d commits, %d patches parsed, %d failed, %d skipped, %s\n",
			s.Repo, s.Commits, s.Parsed, s.Failed, s.Skipped, s.Counts)
		if s.Output != "" {
			fmt.Fprintf(w, "  line graphs: %s\n", s.Output)
		}
	}
	return nil
}
