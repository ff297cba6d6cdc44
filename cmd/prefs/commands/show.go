package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	prefs "github.com/goliatone/go-prefs"
	"github.com/scott-cotton/cli"
)

type showConfig struct {
	*cli.Command
	File  string `cli:"name=file aliases=f desc='YAML store to open'"`
	Redis string `cli:"name=redis desc='redis address; overrides --file'"`
}

// ShowCommand returns the show subcommand.
func ShowCommand() *cli.Command {
	cfg := &showConfig{}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "show").
		WithSynopsis("show <root> - Decode the tree stored under root as YAML").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *showConfig) run(cc *cli.Context, args []string) error {
	args, err := cfg.Parse(cc, args)
	if err != nil {
		return err
	}
	root, err := rootArg(args, "prefs show <root>")
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, closeStore, err := storeFlags{File: cfg.File, Redis: cfg.Redis}.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return writeShow(ctx, cc.Out, store, root)
}

func writeShow(ctx context.Context, w io.Writer, kv prefs.TypedKeyValueStore, root string) error {
	node, ok, err := prefs.From(ctx, kv, root)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("nothing stored under %q", root)
	}
	out, err := yaml.Marshal(map[string]any{root: node.ToMap()})
	if err != nil {
		return fmt.Errorf("error encoding %q: %w", root, err)
	}
	_, err = w.Write(out)
	return err
}
