package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/rpggio/promptkeeper/internal/domain/prompt"
	"github.com/rpggio/promptkeeper/internal/propagation"
	"github.com/spf13/cobra"
)

// WatchCmd prints every change to the collection until canceled.
type WatchCmd struct {
	hub *propagation.Hub
	out io.Writer
}

func (c WatchCmd) notify(format string, a ...any) {
	_, _ = fmt.Fprint(c.out, pterm.Info.Sprintln(fmt.Sprintf(format, a...)))
}

// Run blocks until ctx is done or the store ends the watch.
func (c WatchCmd) Run(ctx context.Context) error {
	unsubscribe, err := c.hub.Subscribe("promptctl", func(_ context.Context, prompts []prompt.Prompt) error {
		favorites := 0
		for _, p := range prompts {
			if p.Favorite {
				favorites++
			}
		}
		c.notify("%s collection changed: %d prompts, %d favorites",
			time.Now().Format(time.TimeOnly), len(prompts), favorites)
		return nil
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	c.notify("Watching for changes (Ctrl+C to stop)")
	return c.hub.Run(ctx)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print a line whenever any client changes the collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		hub := propagation.NewHub(a.store, a.library.Service().Key(), nil)
		return WatchCmd{hub: hub, out: cmd.OutOrStdout()}.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
