package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/doeshing/kmd/internal/app"
	"github.com/doeshing/kmd/internal/domain"
)

func newDoctorCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the kmd environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := container.Doctor.Run(cmd.Context())
			renderHealthReport(cmd.OutOrStdout(), report)
			if err != nil {
				return fmt.Errorf("diagnostics incomplete: %w", err)
			}
			if report.Failed() {
				return fmt.Errorf("one or more checks failed")
			}
			return nil
		},
	}
}

func renderHealthReport(out io.Writer, report domain.HealthReport) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, check := range report.Checks {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			strings.ToUpper(string(check.Status)), check.Name, check.Details)
	}
	w.Flush()
}
