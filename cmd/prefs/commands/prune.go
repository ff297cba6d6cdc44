package commands

import (
	"context"
	"fmt"
	"io"

	prefs "github.com/goliatone/go-prefs"
	"github.com/scott-cotton/cli"
)

type pruneConfig struct {
	*cli.Command
	File   string `cli:"name=file aliases=f desc='YAML store to open'"`
	Redis  string `cli:"name=redis desc='redis address; overrides --file'"`
	Expr   string `cli:"name=expr desc='only delete keys matching this expr-lang expression'"`
	CEL    string `cli:"name=cel desc='only delete keys matching this CEL expression'"`
	DryRun bool   `cli:"name=dry-run aliases=n desc='show what would be deleted without deleting'"`
}

// PruneCommand returns the prune subcommand.
func PruneCommand() *cli.Command {
	cfg := &pruneConfig{}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "prune").
		WithSynopsis("prune <root> [--expr|--cel <expression>] [--dry-run] - Delete keys under root").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *pruneConfig) run(cc *cli.Context, args []string) error {
	args, err := cfg.Parse(cc, args)
	if err != nil {
		return err
	}
	root, err := rootArg(args, "prefs prune <root> [--expr|--cel <expression>]")
	if err != nil {
		return err
	}
	matcher, err := pruneMatcher(root, cfg.Expr, cfg.CEL)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, closeStore, err := storeFlags{File: cfg.File, Redis: cfg.Redis}.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return runPrune(ctx, cc.Out, store, matcher, cfg.DryRun)
}

// pruneMatcher scopes the optional expression to root: keys outside the
// namespace are never candidates.
func pruneMatcher(root, exprSource, celSource string) (prefs.Matcher, error) {
	scope := prefs.Namespace(root)
	if exprSource != "" && celSource != "" {
		return nil, fmt.Errorf("%w: --expr and --cel are mutually exclusive", cli.ErrUsage)
	}

	var (
		filter prefs.Matcher
		err    error
	)
	switch {
	case exprSource != "":
		filter, err = prefs.NewExprMatcher(exprSource, prefs.MatcherWithNamespace(root))
	case celSource != "":
		filter, err = prefs.NewCELMatcher(celSource, prefs.MatcherWithNamespace(root))
	default:
		return scope, nil
	}
	if err != nil {
		return nil, err
	}
	return allOf{scope, filter}, nil
}

type allOf []prefs.Matcher

func (m allOf) Match(ctx context.Context, t prefs.PreferenceType, key string) (bool, error) {
	for _, matcher := range m {
		ok, err := matcher.Match(ctx, t, key)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// recordOnly reports every match as a miss so the pruner deletes nothing,
// keeping the keys it would have deleted.
type recordOnly struct {
	prefs.Matcher
	hits map[prefs.PreferenceType][]string
}

func (m *recordOnly) Match(ctx context.Context, t prefs.PreferenceType, key string) (bool, error) {
	ok, err := m.Matcher.Match(ctx, t, key)
	if err != nil {
		return false, err
	}
	if ok {
		m.hits[t] = append(m.hits[t], key)
	}
	return false, nil
}

func runPrune(ctx context.Context, w io.Writer, kv prefs.TypedKeyValueStore, matcher prefs.Matcher, dryRun bool) error {
	pruner := prefs.NewPruner(kv)
	if dryRun {
		rec := &recordOnly{Matcher: matcher, hits: map[prefs.PreferenceType][]string{}}
		if _, err := pruner.DeleteMatching(ctx, rec); err != nil {
			return err
		}
		total := 0
		for _, t := range prefs.PrimitiveTypes() {
			for _, key := range rec.hits[t] {
				fmt.Fprintf(w, "would delete %s %s\n", dumpType(t.String()), dumpKey(key))
				total++
			}
		}
		_, err := fmt.Fprintf(w, "%d keys would be deleted\n", total)
		return err
	}

	deleted, err := pruner.DeleteMatching(ctx, matcher)
	if err != nil {
		return err
	}
	for _, t := range prefs.PrimitiveTypes() {
		for _, key := range deleted[t].Sorted() {
			fmt.Fprintf(w, "deleted %s %s\n", dumpType(t.String()), dumpKey(key))
		}
	}
	_, err = fmt.Fprintf(w, "%d keys deleted\n", deleted.Len())
	return err
}
