package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"tfl-lake/internal/service/setup"
)

func newSetupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Provision external locations, catalog, schemas and the landing volume",
		Long: "Provision the workspace for the resolved environment. Every step is\n" +
			"idempotent: objects that already exist are left unchanged.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			report, err := a.Setup.Provision(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, report, func(w io.Writer) { printSetupReport(w, report) })
		},
	}
}

func printSetupReport(w io.Writer, r *setup.Report) {
	rows := make([][]string, 0, len(r.Locations)+len(r.Schemas)+2)
	for _, l := range r.Locations {
		rows = append(rows, []string{"external_location", l.Name, l.Location, strconv.FormatBool(l.Created)})
	}
	rows = append(rows, []string{"catalog", r.Catalog.Name, r.Catalog.Location, strconv.FormatBool(r.Catalog.Created)})
	for _, s := range r.Schemas {
		rows = append(rows, []string{"schema", s.Name, s.Location, strconv.FormatBool(s.Created)})
	}
	rows = append(rows, []string{"volume", r.Volume.Name, r.Volume.Location, strconv.FormatBool(r.Volume.Created)})

	PrintDetail(w, map[string]any{
		"environment":         r.Environment,
		"credential_verified": r.CredentialVerified,
	})
	_, _ = io.WriteString(w, "\n")
	PrintTable(w, []string{"object", "name", "location", "created"}, rows)
}
