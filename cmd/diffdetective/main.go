// Package main provides the diffdetective CLI.
package main

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/VariantSync/DiffDetective-sub004/cpp"
	"github.com/VariantSync/DiffDetective-sub004/editclass"
	"github.com/VariantSync/DiffDetective-sub004/internal/config"
	"github.com/VariantSync/DiffDetective-sub004/internal/mining"
	"github.com/VariantSync/DiffDetective-sub004/linegraph"
	"github.com/VariantSync/DiffDetective-sub004/parse"
	"github.com/VariantSync/DiffDetective-sub004/sat"
	"github.com/VariantSync/DiffDetective-sub004/vdiff"
)

var rootCmd = &cobra.Command{
	Use:           "diffdetective",
	Short:         "Analyze how C preprocessor variability evolves",
	Long:          `diffdetective parses diffs of C preprocessor annotated files into variation diffs, classifies every edited artifact with an elementary edit pattern and mines whole git histories.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd.ErrOrStderr())
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <diff-file>",
	Short: "Parse a diff and print its line graph",
	Long:  `Parse a diff (or, with --tree, a plain source file) and print the variation diff as line graph. Use "-" to read standard input.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var classifyCmd = &cobra.Command{
	Use:   "classify <diff-file>",
	Short: "Print the elementary edit pattern of every artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

var validateCmd = &cobra.Command{
	Use:   "validate <lg-file>",
	Short: "Read a line graph file and check every variation diff",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var mineCmd = &cobra.Command{
	Use:   "mine <datasets.yaml>",
	Short: "Mine the histories of all datasets in a registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runMine,
}

var (
	logLevel     string
	nodeFormat   string
	treeFlag     bool
	resolverName string
	noCollapse   bool
	ignoreEmpty  bool
	transforms   []string

	log = logrus.New()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (default $DIFFDETECTIVE_LOG_LEVEL or info)")

	for _, c := range []*cobra.Command{parseCmd, classifyCmd, mineCmd} {
		c.Flags().BoolVar(&noCollapse, "no-collapse", false, "Keep every code line in its own node")
		c.Flags().BoolVar(&ignoreEmpty, "ignore-empty", false, "Skip blank lines")
		c.Flags().StringSliceVar(&transforms, "transform", nil, "Transformations to apply: "+strings.Join(transformerNames(), ", "))
	}
	for _, c := range []*cobra.Command{parseCmd, classifyCmd} {
		c.Flags().StringVar(&resolverName, "resolver", "", "Macro resolver: "+strings.Join(slices.Sorted(maps.Keys(cpp.Resolvers)), ", "))
	}
	for _, c := range []*cobra.Command{parseCmd, validateCmd, mineCmd} {
		c.Flags().StringVar(&nodeFormat, "format", "linenumber", "Node label format: linenumber, type, releasemining or debug")
	}
	parseCmd.Flags().BoolVar(&treeFlag, "tree", false, "Parse a plain source file instead of a diff")
	initMineFlags()

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(mineCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(w io.Writer) error {
	cfg := config.FromArgs("", "", logLevel, 0)
	lvl, err := cfg.Level()
	if err != nil {
		return err
	}
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

func transformerNames() []string {
	return []string{
		vdiff.CutNonEditedSubtrees{}.Name(),
		vdiff.CollapseNestedNonEditedAnnotations{}.Name(),
	}
}

func selectedTransformers() ([]vdiff.Transformer, error) {
	var out []vdiff.Transformer
	for _, name := range transforms {
		t, ok := vdiff.Transformers[name]
		if !ok {
			return nil, fmt.Errorf("unknown transformation %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

func parseOptions() (parse.Options, error) {
	resolver, err := cpp.ResolverByName(resolverName)
	if err != nil {
		return parse.Options{}, err
	}
	return parse.Options{
		CollapseMultipleCodeLines: !noCollapse,
		IgnoreEmptyLines:          ignoreEmpty,
		Formulas:                  &cpp.Extractor{Resolver: resolver},
	}, nil
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(data), nil
}

// parseInput parses the file named by path and applies the selected
// transformations.
func parseInput(cmd *cobra.Command, path string, tree bool) (*vdiff.VariationDiff, error) {
	text, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	opts, err := parseOptions()
	if err != nil {
		return nil, err
	}
	trs, err := selectedTransformers()
	if err != nil {
		return nil, err
	}

	var d *vdiff.VariationDiff
	if tree {
		if parse.HasDiffMarkers(text) {
			log.WithField("file", path).Warn("input looks like a diff, lines starting with + or - are read as code")
		}
		d, err = parse.ParseVariationTree(strings.NewReader(text), opts)
	} else {
		d, err = parse.ParseDiff(text, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := vdiff.Apply(d, trs...); err != nil {
		return nil, err
	}
	return d, nil
}

func runParse(cmd *cobra.Command, args []string) error {
	d, err := parseInput(cmd, args[0], treeFlag)
	if err != nil {
		return err
	}
	nodes, err := linegraph.NodeFormatByName(nodeFormat, sat.New())
	if err != nil {
		return err
	}
	e := linegraph.NewExporter(cmd.OutOrStdout(), linegraph.Options{Nodes: nodes})
	return e.Export(linegraph.TreeSource{Path: args[0]}, d)
}

func runClassify(cmd *cobra.Command, args []string) error {
	d, err := parseInput(cmd, args[0], false)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	matches := editclass.ClassifyAll(d, sat.New())
	slices.SortStableFunc(matches, func(a, b editclass.Match) int {
		return cmp.Compare(a.Node.From.InDiff, b.Node.From.InDiff)
	})
	counts := make(editclass.Counts)
	for _, m := range matches {
		counts[m.Pattern]++
		first := ""
		if len(m.Node.Lines) > 0 {
			first = strings.TrimSpace(m.Node.Lines[0])
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Node.LinesInDiff(), m.Pattern, first)
	}
	fmt.Fprintf(w, "total %d: %s\n", counts.Total(), counts)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	nodes, err := linegraph.NodeFormatByName(nodeFormat, nil)
	if err != nil {
		return err
	}
	r, err := mining.OpenLineGraph(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	graphs, err := linegraph.Import(r, linegraph.Options{Nodes: nodes})
	if err != nil {
		return err
	}
	invalid, total := 0, 0
	for _, g := range graphs {
		total += g.Diff.Len()
		if err := vdiff.Check(g.Diff); err != nil {
			invalid++
			log.WithField("tree", g.Label).WithError(err).Error("inconsistent variation diff")
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d variation diffs, %d nodes, %d inconsistent\n", len(graphs), total, invalid)
	if invalid > 0 {
		return fmt.Errorf("%d of %d variation diffs are inconsistent", invalid, len(graphs))
	}
	return nil
}
