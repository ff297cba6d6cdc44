package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	prefs "github.com/goliatone/go-prefs"
	"github.com/goliatone/go-prefs/pkg/kv/redis"
	"github.com/goliatone/go-prefs/pkg/kv/yamlfile"
	"github.com/scott-cotton/cli"
)

const usageText = `prefs - inspect flattened preference stores

Usage:
  prefs dump [--values]                   List every stored key by type
  prefs show <root>                       Decode the tree stored under root as YAML
  prefs prune <root> [--expr|--cel <e>]   Delete keys under root

Every command reads the YAML store named by --file (default $PREFS_FILE or
prefs.yaml), or a redis server when --redis is set.

Examples:
  prefs dump --values
  prefs show IC
  prefs prune CanisterInterfaceCache
  prefs prune IC --expr 'kind == "Boolean"' --dry-run`

// DefaultFile is the YAML store used when neither --file nor PREFS_FILE is
// set.
const DefaultFile = "prefs.yaml"

// Root returns the root command for prefs.
func Root() *cli.Command {
	return cli.NewCommand("prefs").
		WithSynopsis("prefs - inspect flattened preference stores").
		WithDescription(usageText).
		WithSubs(
			DumpCommand(),
			ShowCommand(),
			PruneCommand(),
		)
}

// storeFlags carries the --file and --redis values every subcommand
// declares.
type storeFlags struct {
	File  string
	Redis string
}

func (f storeFlags) open(ctx context.Context) (prefs.TypedKeyValueStore, func() error, error) {
	if addr := strings.TrimSpace(f.Redis); addr != "" {
		opts := redis.DefaultOptions()
		opts.Address = addr
		store, err := redis.Open(ctx, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to %s: %w", addr, err)
		}
		return store, store.Close, nil
	}

	path := strings.TrimSpace(f.File)
	if path == "" {
		path = os.Getenv("PREFS_FILE")
	}
	if path == "" {
		path = DefaultFile
	}
	store, err := yamlfile.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open %q: %w", path, err)
	}
	return store, func() error { return nil }, nil
}

func rootArg(args []string, usage string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: usage: %s", cli.ErrUsage, usage)
	}
	root := args[0]
	if err := prefs.ValidateKey(root); err != nil {
		return "", err
	}
	return root, nil
}
