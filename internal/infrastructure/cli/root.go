// Package cli assembles the cobra command tree: the daemon at the root plus
// one-shot subcommands sharing the same container.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/doeshing/kmd/internal/app"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
}

// NewRootCmd wires the cobra root command. Running the root with no
// subcommand starts the daemon.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, error) {
	container, err := app.BuildContainer(opts.Verbose)
	if err != nil {
		return nil, err
	}

	var (
		listen  string
		verbose bool
	)

	root := &cobra.Command{
		Use:   "kmd",
		Short: "kmd - hotkey to terminal command",
		Long: "kmd runs a resident daemon: press the global hotkey, describe what you\n" +
			"need in plain words, and the generated terminal command lands in your\n" +
			"clipboard.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), container, listen)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Verbose is consumed before cobra parses (the logger exists first);
	// registering it keeps parsing and help honest.
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", opts.Verbose, "Enable debug logging (also KMD_DEBUG=1)")
	root.Flags().StringVar(&listen, "listen", "", "Control API address (default 127.0.0.1:5630, env KMD_LISTEN)")

	root.AddCommand(newAskCommand(container))
	root.AddCommand(newConfigCommand(container))
	root.AddCommand(newCacheCommand(container))
	root.AddCommand(newDoctorCommand(container))
	root.AddCommand(newVersionCommand())
	return root, nil
}
