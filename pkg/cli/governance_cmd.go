package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tfl-lake/internal/domain"
)

func newCredentialCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage storage credentials",
	}
	cmd.AddCommand(newCredentialCreateCmd(opts))
	cmd.AddCommand(newCredentialListCmd(opts))
	return cmd
}

type credentialOutput struct {
	Name           string `json:"name"`
	CredentialType string `json:"credential_type"`
	Account        string `json:"account,omitempty"`
	Endpoint       string `json:"endpoint,omitempty"`
	Region         string `json:"region,omitempty"`
	Comment        string `json:"comment,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func credentialToOutput(c domain.StorageCredential) credentialOutput {
	return credentialOutput{
		Name:           c.Name,
		CredentialType: string(c.CredentialType),
		Account:        c.AzureAccountName,
		Endpoint:       c.Endpoint,
		Region:         c.Region,
		Comment:        c.Comment,
		CreatedAt:      formatValue(c.CreatedAt),
	}
}

func newCredentialCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		credType string
		cred     domain.StorageCredential
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a storage credential; secrets are encrypted at rest",
		Example: "  tfl credential create tfl_cred --type AZURE --account-name tflstorage --account-key $KEY\n" +
			"  tfl credential create minio --type S3 --key-id k --secret s --region us-east-1 --endpoint localhost:9000 --url-style path",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred.Name = args[0]
			cred.CredentialType = domain.CredentialType(strings.ToUpper(credType))
			if err := domain.ValidateStorageCredential(cred); err != nil {
				return err
			}

			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			created, err := a.Repos.Credentials.Create(cmd.Context(), &cred)
			if err != nil {
				return err
			}
			out := credentialToOutput(*created)
			return render(cmd, out, func(w io.Writer) {
				PrintDetail(w, map[string]any{
					"name":            out.Name,
					"credential_type": out.CredentialType,
					"created_at":      out.CreatedAt,
				})
			})
		},
	}

	cmd.Flags().StringVar(&credType, "type", string(domain.CredentialTypeAzure), "Credential type (AZURE, S3, GCS)")
	cmd.Flags().StringVar(&cred.AzureAccountName, "account-name", "", "Azure storage account name")
	cmd.Flags().StringVar(&cred.AzureAccountKey, "account-key", "", "Azure storage account key")
	cmd.Flags().StringVar(&cred.KeyID, "key-id", "", "S3 access key id")
	cmd.Flags().StringVar(&cred.Secret, "secret", "", "S3 secret access key")
	cmd.Flags().StringVar(&cred.Region, "region", "", "S3 region")
	cmd.Flags().StringVar(&cred.Endpoint, "endpoint", "", "S3 endpoint host (for S3-compatible stores)")
	cmd.Flags().StringVar(&cred.URLStyle, "url-style", "", "S3 URL style (path or vhost)")
	cmd.Flags().StringVar(&cred.GCSKeyFilePath, "key-file", "", "GCS service account key file")
	cmd.Flags().StringVar(&cred.Comment, "comment", "", "Free-form comment")
	return cmd
}

func newCredentialListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List storage credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			creds, _, err := a.Repos.Credentials.List(cmd.Context(), domain.PageRequest{MaxResults: domain.MaxMaxResults})
			if err != nil {
				return err
			}
			out := make([]credentialOutput, 0, len(creds))
			for _, c := range creds {
				out = append(out, credentialToOutput(c))
			}
			return render(cmd, out, func(w io.Writer) {
				rows := make([][]string, 0, len(out))
				for _, c := range out {
					rows = append(rows, []string{c.Name, c.CredentialType, c.Account, c.Endpoint, c.CreatedAt})
				}
				PrintTable(w, []string{"name", "type", "account", "endpoint", "created_at"}, rows)
			})
		},
	}
}

func newLocationCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Inspect external locations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List external locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			locs, _, err := a.Repos.Locations.List(cmd.Context(), domain.PageRequest{MaxResults: domain.MaxMaxResults})
			if err != nil {
				return err
			}
			type locationOutput struct {
				Name           string `json:"name"`
				URL            string `json:"url"`
				CredentialName string `json:"credential_name"`
				StorageType    string `json:"storage_type"`
				ReadOnly       bool   `json:"read_only"`
			}
			out := make([]locationOutput, 0, len(locs))
			for _, l := range locs {
				out = append(out, locationOutput{l.Name, l.URL, l.CredentialName, string(l.StorageType), l.ReadOnly})
			}
			return render(cmd, out, func(w io.Writer) {
				rows := make([][]string, 0, len(out))
				for _, l := range out {
					rows = append(rows, []string{l.Name, l.URL, l.CredentialName, l.StorageType, strconv.FormatBool(l.ReadOnly)})
				}
				PrintTable(w, []string{"name", "url", "credential", "type", "read_only"}, rows)
			})
		},
	})
	return cmd
}

func newVolumeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volume",
		Short: "Inspect volumes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List volumes of the environment's catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			vols, _, err := a.Repos.Volumes.List(cmd.Context(), a.Paths.Catalog(), domain.PageRequest{MaxResults: domain.MaxMaxResults})
			if err != nil {
				return err
			}
			type volumeOutput struct {
				Identifier      string `json:"identifier"`
				VolumeType      string `json:"volume_type"`
				StorageLocation string `json:"storage_location"`
				Comment         string `json:"comment,omitempty"`
			}
			out := make([]volumeOutput, 0, len(vols))
			for _, v := range vols {
				out = append(out, volumeOutput{
					Identifier:      a.Paths.VolumeIdentifier(v.SchemaName, v.Name),
					VolumeType:      v.VolumeType,
					StorageLocation: v.StorageLocation,
					Comment:         v.Comment,
				})
			}
			return render(cmd, out, func(w io.Writer) {
				rows := make([][]string, 0, len(out))
				for _, v := range out {
					rows = append(rows, []string{v.Identifier, v.VolumeType, v.StorageLocation})
				}
				PrintTable(w, []string{"volume", "type", "location"}, rows)
			})
		},
	})
	return cmd
}
