package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	prefs "github.com/goliatone/go-prefs"
	"github.com/scott-cotton/cli"
)

type dumpConfig struct {
	*cli.Command
	File    string `cli:"name=file aliases=f desc='YAML store to open'"`
	Redis   string `cli:"name=redis desc='redis address; overrides --file'"`
	Values  bool   `cli:"name=values aliases=v desc='print stored values next to keys'"`
	NoColor bool   `cli:"name=no-color desc='disable colored output'"`
}

// DumpCommand returns the dump subcommand.
func DumpCommand() *cli.Command {
	cfg := &dumpConfig{}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "dump").
		WithSynopsis("dump [--values] - List every stored key by type").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *dumpConfig) run(cc *cli.Context, args []string) error {
	_, err := cfg.Parse(cc, args)
	if err != nil {
		return err
	}
	if cfg.NoColor {
		color.NoColor = true
	}

	ctx := context.Background()
	store, closeStore, err := storeFlags{File: cfg.File, Redis: cfg.Redis}.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return writeDump(ctx, cc.Out, store, cfg.Values)
}

var (
	dumpBanner = color.New(color.Faint).SprintFunc()
	dumpType   = color.New(color.FgCyan, color.Bold).SprintFunc()
	dumpKey    = color.RGB(128, 168, 196).SprintFunc()
	dumpValue  = color.RGB(8, 196, 16).SprintFunc()
)

// writeDump prints the same layout as Pruner.Dump, colored, optionally
// with each key's value.
func writeDump(ctx context.Context, w io.Writer, kv prefs.TypedKeyValueStore, values bool) error {
	keys, err := prefs.ListKeys(ctx, kv)
	if err != nil {
		return err
	}

	total := 0
	fmt.Fprintln(w, dumpBanner("--- preference keys start ---"))
	for _, t := range prefs.PrimitiveTypes() {
		set := keys[t]
		if len(set) == 0 {
			continue
		}
		fmt.Fprintf(w, "type = %s\n", dumpType(t.String()))
		for _, key := range set.Sorted() {
			total++
			if !values {
				fmt.Fprintln(w, dumpKey(key))
				continue
			}
			value, err := lookup(ctx, kv, t, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s = %s\n", dumpKey(key), dumpValue(value))
		}
	}
	fmt.Fprintf(w, "num keys = %d\n", total)
	_, err = fmt.Fprintln(w, dumpBanner("--- preference keys end ---"))
	return err
}

func lookup(ctx context.Context, kv prefs.TypedKeyValueStore, t prefs.PreferenceType, key string) (string, error) {
	switch t {
	case prefs.TypeBoolean:
		return lookupIn(ctx, kv.Booleans(), key)
	case prefs.TypeByte:
		return lookupIn(ctx, kv.Bytes(), key)
	case prefs.TypeShort:
		return lookupIn(ctx, kv.Shorts(), key)
	case prefs.TypeInteger:
		return lookupIn(ctx, kv.Integers(), key)
	case prefs.TypeLong:
		return lookupIn(ctx, kv.Longs(), key)
	case prefs.TypeString:
		value, ok, err := kv.Strings().Get(ctx, key)
		if err != nil || !ok {
			return "", err
		}
		return fmt.Sprintf("%q", value), nil
	default:
		return "", fmt.Errorf("unsupported type %s", t)
	}
}

func lookupIn[T prefs.Scalar](ctx context.Context, space prefs.KeySpace[T], key string) (string, error) {
	value, ok, err := space.Get(ctx, key)
	if err != nil || !ok {
		return "", err
	}
	return fmt.Sprint(value), nil
}
