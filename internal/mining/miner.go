// Package mining runs the variation diff analysis over the history of a
// repository: it parses every patch, classifies its artifacts and writes
// the results as line graphs and database rows.
package mining

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/VariantSync/DiffDetective-sub004/editclass"
	"github.com/VariantSync/DiffDetective-sub004/internal/cas"
	"github.com/VariantSync/DiffDetective-sub004/internal/dataset"
	"github.com/VariantSync/DiffDetective-sub004/internal/gitio"
	"github.com/VariantSync/DiffDetective-sub004/internal/store"
	"github.com/VariantSync/DiffDetective-sub004/linegraph"
	"github.com/VariantSync/DiffDetective-sub004/parallel"
	"github.com/VariantSync/DiffDetective-sub004/parse"
	"github.com/VariantSync/DiffDetective-sub004/sat"
	"github.com/VariantSync/DiffDetective-sub004/vdiff"
)

// Options configure a Miner.
type Options struct {
	// OutputDir receives one line graph file per repository. Empty
	// disables line graph output.
	OutputDir string
	Compress  bool
	// Workers bounds the number of commits analyzed at once.
	Workers int
	// CommitLimit bounds the number of mined commits, 0 for all.
	CommitLimit int
	Parse       parse.Options
	// Transformers run on every parsed variation diff before
	// classification.
	Transformers []vdiff.Transformer
	// Nodes is the line graph node format. Nil means the lossless line
	// number format.
	Nodes linegraph.NodeFormat
}

// Miner mines repositories. It is safe to run several Mine calls at once.
type Miner struct {
	log     logrus.FieldLogger
	db      *store.DB
	metrics *Metrics
	oracle  sat.Oracle
	opts    Options
}

// NewMiner creates a miner. db and metrics may be nil.
func NewMiner(log logrus.FieldLogger, db *store.DB, metrics *Metrics, opts Options) *Miner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Miner{
		log:     log,
		db:      db,
		metrics: metrics,
		oracle:  sat.New(),
		opts:    opts,
	}
}

// PatchResult is the analysis of one patch.
type PatchResult struct {
	Patch  gitio.Patch
	Digest string
	// Diff is nil if the patch failed to parse or was skipped.
	Diff   *vdiff.VariationDiff
	Counts editclass.Counts
	// Err is the recoverable parse error of a failed patch.
	Err error
	// Skipped is set for patches the store already holds.
	Skipped bool
}

// CommitResult holds the patch results of one commit in patch order.
type CommitResult struct {
	Commit  *gitio.Commit
	Patches []PatchResult
}

// Summary describes a finished Mine call.
type Summary struct {
	Repo    string
	RunID   string
	Output  string
	Commits int
	Parsed  int
	Failed  int
	Skipped int
	Nodes   int
	Counts  editclass.Counts
	// Errors counts failed patches by parse error kind.
	Errors   map[parse.ErrorKind]int
	Duration time.Duration
}

// AnalyzePatch parses one patch and classifies its artifacts. Parse
// failures are reported in the result, not as an error. It panics if a
// transformation leaves the variation diff inconsistent.
func (m *Miner) AnalyzePatch(p gitio.Patch) (PatchResult, error) {
	return m.analyze(p, cas.PatchDigest(p.Path, p.Diff))
}

func (m *Miner) analyze(p gitio.Patch, digest string) (PatchResult, error) {
	r := PatchResult{Patch: p, Digest: digest}

	d, err := parse.ParseDiff(p.Diff, m.opts.Parse)
	if err != nil {
		var pe *parse.Error
		if !errors.As(err, &pe) {
			return r, fmt.Errorf("parsing %s: %w", p.Path, err)
		}
		r.Err = pe
		return r, nil
	}
	if err := vdiff.Apply(d, m.opts.Transformers...); err != nil {
		return r, fmt.Errorf("transforming %s: %w", p.Path, err)
	}
	r.Diff = d
	r.Counts = editclass.Count(d, m.oracle)
	return r, nil
}

// AnalyzeCommit analyzes every patch of c. Patches whose digest is in known
// are skipped. known is only read, so one set can be shared by concurrent
// calls.
func (m *Miner) AnalyzeCommit(c *gitio.Commit, known map[string]bool) (*CommitResult, error) {
	cr := &CommitResult{Commit: c, Patches: make([]PatchResult, 0, len(c.Patches))}
	for _, p := range c.Patches {
		digest := cas.PatchDigest(p.Path, p.Diff)
		if known[digest] {
			cr.Patches = append(cr.Patches, PatchResult{Patch: p, Digest: digest, Skipped: true})
			continue
		}
		r, err := m.analyze(p, digest)
		if err != nil {
			return nil, fmt.Errorf("commit %s: %w", c.Hash, err)
		}
		cr.Patches = append(cr.Patches, r)
	}
	return cr, nil
}

// Mine walks the first-parent history of the dataset's repository and
// analyzes every commit. Commit results are consumed in history order, so
// the output is deterministic for any number of workers.
//
// With a store attached, a patch is mined once per repository: patches
// stored by earlier runs or seen earlier in the history are skipped, and
// line graphs are appended to the output of earlier runs.
func (m *Miner) Mine(ctx context.Context, repo *gitio.Repository, ds dataset.Dataset) (*Summary, error) {
	start := time.Now()
	log := m.log.WithField("repo", ds.Name)
	sum := &Summary{
		Repo:   ds.Name,
		Counts: make(editclass.Counts),
		Errors: make(map[parse.ErrorKind]int),
	}

	var known, seen map[string]bool
	if m.db != nil {
		var err error
		if known, err = m.db.PatchDigests(ds.Name); err != nil {
			return nil, err
		}
		seen = make(map[string]bool)

		digest, err := cas.ObjectDigest("run", m.settings(ds))
		if err != nil {
			return nil, err
		}
		run, err := m.db.BeginRun(ds.Name, digest)
		if err != nil {
			return nil, err
		}
		sum.RunID = run.ID
		log = log.WithField("run", run.ID)
	}

	var exporter *linegraph.Exporter
	if m.opts.OutputDir != "" {
		out, err := createOutput(m.opts.OutputDir, ds.Name, m.opts.Compress, m.db != nil)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := out.Close(); err != nil {
				log.WithError(err).Warn("closing line graph output")
			}
		}()
		sum.Output = out.path
		exporter = linegraph.NewExporter(out, linegraph.Options{Nodes: m.opts.Nodes})
	}

	log.Info("mining started")
	it := parallel.New(m.tasks(repo, ds, known), m.opts.Workers)
	defer it.Close()

	for it.HasNext() {
		cr, err := it.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("mining %s: %w", ds.Name, err)
		}
		if err := m.consume(log, sum, exporter, seen, cr); err != nil {
			return nil, fmt.Errorf("mining %s: %w", ds.Name, err)
		}
	}

	if m.db != nil {
		if err := m.db.FinishRun(sum.RunID); err != nil {
			return nil, err
		}
	}
	sum.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"commits":  sum.Commits,
		"parsed":   sum.Parsed,
		"failed":   sum.Failed,
		"skipped":  sum.Skipped,
		"patterns": sum.Counts.String(),
		"duration": sum.Duration.Round(time.Millisecond),
	}).Info("mining finished")
	return sum, nil
}

// tasks pulls commits lazily. The repository is only read from the
// goroutine that calls Next, the workers only parse and classify.
func (m *Miner) tasks(repo *gitio.Repository, ds dataset.Dataset, known map[string]bool) iter.Seq[parallel.Task[*CommitResult]] {
	return func(yield func(parallel.Task[*CommitResult]) bool) {
		for c, err := range repo.Commits(ds.Ref, ds.Matches, m.opts.CommitLimit) {
			if err != nil {
				yield(func() (*CommitResult, error) { return nil, err })
				return
			}
			if !yield(func() (*CommitResult, error) { return m.AnalyzeCommit(c, known) }) {
				return
			}
		}
	}
}

// consume records one commit result. seen holds the digests recorded so
// far in this run, nil without a store.
func (m *Miner) consume(log logrus.FieldLogger, sum *Summary, exporter *linegraph.Exporter, seen map[string]bool, cr *CommitResult) error {
	sum.Commits++
	log = log.WithField("commit", cr.Commit.Hash)

	rows := make([]store.Patch, 0, len(cr.Patches))
	for _, r := range cr.Patches {
		if seen != nil && !r.Skipped {
			if seen[r.Digest] {
				r = PatchResult{Patch: r.Patch, Digest: r.Digest, Skipped: true}
			}
			seen[r.Digest] = true
		}
		m.metrics.observe(r)
		row := store.Patch{
			Repo:   sum.Repo,
			Commit: r.Patch.CommitHash,
			Path:   r.Patch.Path,
			Digest: r.Digest,
		}
		switch {
		case r.Skipped:
			sum.Skipped++
			continue
		case r.Err != nil:
			sum.Failed++
			kind, _ := parse.KindOf(r.Err)
			sum.Errors[kind]++
			row.ErrorKind = string(kind)
			log.WithFields(logrus.Fields{"file": r.Patch.Path, "kind": kind}).WithError(r.Err).Debug("skipping unparsable patch")
		default:
			sum.Parsed++
			sum.Nodes += r.Diff.Len()
			sum.Counts.Add(r.Counts)
			row.Nodes = r.Diff.Len()
			row.Patterns = patternNames(r.Counts)
			if exporter != nil {
				src := linegraph.TreeSource{Path: r.Patch.Path, Commit: r.Patch.CommitHash}
				if err := exporter.Export(src, r.Diff); err != nil {
					return err
				}
			}
		}
		rows = append(rows, row)
	}

	if m.db != nil && len(rows) > 0 {
		if _, err := m.db.Record(sum.RunID, rows); err != nil {
			log.WithError(err).Warn("storing commit results")
			return err
		}
	}
	return nil
}

func (m *Miner) settings(ds dataset.Dataset) map[string]any {
	var transformers []string
	for _, t := range m.opts.Transformers {
		transformers = append(transformers, t.Name())
	}
	nodes := "linenumber"
	if m.opts.Nodes != nil {
		nodes = m.opts.Nodes.Name()
	}
	return map[string]any{
		"ref":          ds.Ref,
		"resolver":     ds.Resolver,
		"include":      ds.Include,
		"exclude":      ds.Exclude,
		"collapse":     m.opts.Parse.CollapseMultipleCodeLines,
		"ignoreEmpty":  m.opts.Parse.IgnoreEmptyLines,
		"transformers": transformers,
		"commitLimit":  m.opts.CommitLimit,
		"nodes":        nodes,
	}
}

func patternNames(c editclass.Counts) map[string]int {
	out := make(map[string]int, len(c))
	for p, n := range c {
		out[p.String()] = n
	}
	return out
}
