package cli

import (
	"io"
	"sort"

	"github.com/spf13/cobra"

	"tfl-lake/internal/lakepath"
)

type envSummary struct {
	Environment       string            `json:"environment"`
	ConfigPath        string            `json:"config_path"`
	Catalog           string            `json:"catalog"`
	CatalogBackend    string            `json:"catalog_backend"`
	Schemas           map[string]string `json:"schemas"`
	StorageAccount    string            `json:"storage_account"`
	StorageCredential string            `json:"storage_credential"`
	Containers        map[string]string `json:"containers"`
	ExternalLocations map[string]string `json:"external_locations"`
	LocalStorageRoot  string            `json:"local_storage_root,omitempty"`
}

func newEnvCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the resolved environment and its configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, cfg, err := opts.lakeConfig()
			if err != nil {
				return err
			}
			paths := lakepath.New(cfg)
			out := envSummary{
				Environment:       cfg.Environment,
				ConfigPath:        s.ConfigPath,
				Catalog:           cfg.Catalog,
				CatalogBackend:    s.CatalogBackend,
				Schemas:           map[string]string{"bronze": cfg.Schemas.Bronze, "silver": cfg.Schemas.Silver, "gold": cfg.Schemas.Gold},
				StorageAccount:    cfg.Storage.AccountName,
				StorageCredential: cfg.Storage.StorageCredential,
				Containers:        make(map[string]string, len(cfg.Storage.Containers)),
				ExternalLocations: make(map[string]string, len(cfg.Storage.ExternalLocations)),
				LocalStorageRoot:  s.LocalStorageRoot,
			}
			for role := range cfg.Storage.Containers {
				out.Containers[role] = paths.StoragePath(role, "")
			}
			for layer, name := range cfg.Storage.ExternalLocations {
				out.ExternalLocations[layer] = name
			}

			return render(cmd, out, func(w io.Writer) {
				PrintDetail(w, map[string]any{
					"environment":        out.Environment,
					"config_path":        out.ConfigPath,
					"catalog":            out.Catalog,
					"catalog_backend":    out.CatalogBackend,
					"storage_account":    out.StorageAccount,
					"storage_credential": out.StorageCredential,
					"local_storage_root": out.LocalStorageRoot,
				})
				_, _ = io.WriteString(w, "\n")
				rows := make([][]string, 0, len(out.Containers))
				for _, layer := range sortedKeys(out.Containers) {
					rows = append(rows, []string{layer, cfg.Schema(layer), out.ExternalLocations[layer], out.Containers[layer]})
				}
				PrintTable(w, []string{"layer", "schema", "external_location", "url"}, rows)
			})
		},
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
