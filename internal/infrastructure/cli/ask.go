package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/app"
	"github.com/doeshing/kmd/internal/domain"
)

func newAskCommand(container *app.Container) *cobra.Command {
	var (
		backendFlag string
		noCopy      bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask [words...]",
		Short: "Generate a command once, without the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, container, strings.Join(args, " "), backendFlag, noCopy, timeout)
		},
	}

	cmd.Flags().StringVarP(&backendFlag, "backend", "b", "", "Override the configured provider (ollama, openai, gemini)")
	cmd.Flags().BoolVar(&noCopy, "no-copy", false, "Print only, skip the clipboard")
	cmd.Flags().DurationVar(&timeout, "timeout", domain.DefaultDispatchTimeout, "Generation deadline")
	return cmd
}

// runAsk writes the bare command to stdout and keeps every decoration on
// stderr, so `kmd ask ... | sh -n` style piping works.
func runAsk(cmd *cobra.Command, container *app.Container, text, backendFlag string, noCopy bool, timeout time.Duration) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("nothing to ask")
	}

	cfg := container.Store.Snapshot()
	id := cfg.Provider
	if backendFlag != "" {
		id = domain.BackendID(backendFlag)
	}

	adapter, err := container.Resolver.Resolve(id)
	if err != nil {
		var unknown *domain.UnknownBackendError
		if errors.As(err, &unknown) {
			return fmt.Errorf("unknown backend %q (available: %s)", id, joinIDs(container.Resolver.IDs()))
		}
		return err
	}
	settings := cfg.SettingsFor(id)

	command, fromCache := cachedCommand(container, id, settings.Model, text)
	if !fromCache {
		command, err = generateWithSpinner(cmd.Context(), errOut, adapter.Generate, text, settings, timeout)
		if err != nil {
			return err
		}
	}

	risk := domain.RiskAssessment{Level: domain.RiskSafe}
	if container.Guardrail != nil {
		if assessed, err := container.Guardrail.Evaluate(command); err == nil {
			risk = assessed
		}
	}
	if !fromCache && container.Cache != nil && risk.Level != domain.RiskCritical {
		if err := container.Cache.Put(id, settings.Model, text, command); err != nil {
			container.Logger.Warn("cache write failed", zap.Error(err))
		}
	}

	fmt.Fprintln(out, command)

	if fromCache {
		fmt.Fprintln(errOut, "(cached)")
	}
	if risk.Level != domain.RiskSafe {
		fmt.Fprintf(errOut, "Warning: %s risk\n", strings.ToUpper(string(risk.Level)))
		for _, reason := range risk.Reasons {
			fmt.Fprintf(errOut, " - %s\n", reason)
		}
	}

	if noCopy {
		return nil
	}
	if err := container.Sink.Copy(command); err != nil {
		fmt.Fprintln(errOut, "Clipboard unavailable, copy the command above manually.")
		return nil
	}
	fmt.Fprintln(errOut, "(copied to clipboard)")
	return nil
}

type generateFunc func(ctx context.Context, query string, settings domain.BackendSettings) (string, error)

func generateWithSpinner(ctx context.Context, errOut io.Writer, generate generateFunc, text string, settings domain.BackendSettings, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spinner := NewSpinner(errOut)
	spinner.Start()
	command, err := generate(ctx, text, settings)
	spinner.Stop()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("backend did not answer within %s", timeout)
		}
		return "", err
	}
	return command, nil
}

func cachedCommand(container *app.Container, id domain.BackendID, model, text string) (string, bool) {
	if container.Cache == nil {
		return "", false
	}
	command, hit, err := container.Cache.Get(id, model, text)
	if err != nil || !hit {
		return "", false
	}
	return command, true
}

func joinIDs(ids []domain.BackendID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}
