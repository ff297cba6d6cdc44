package main

import (
	"context"

	"github.com/goliatone/go-prefs/cmd/prefs/commands"
	"github.com/scott-cotton/cli"
)

func main() {
	cli.MainContext(context.Background(), commands.Root())
}
