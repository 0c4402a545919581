package cli

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources and connector types",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	if sourceService == nil {
		return errNotConfigured
	}

	sources, err := sourceService.List(contextOf(cmd))
	if err != nil {
		return err
	}
	types := sourceService.ConnectorTypes()

	if len(sources) == 0 {
		cmd.Println("No sources configured.")
	} else {
		cmd.Println("Sources:")
		for _, s := range sources {
			cmd.Printf("  %s (%s) -> index %s\n", s.Name, s.Type, s.Index)
			secret := secretKeys(types, s.Type)
			keys := make([]string, 0, len(s.Settings))
			for k := range s.Settings {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				v := s.Settings[k]
				if secret[k] {
					v = mask(v)
				}
				cmd.Printf("      %s = %s\n", k, v)
			}
		}
	}

	cmd.Println()
	cmd.Println("Connector types:")
	for _, ct := range types {
		cmd.Printf("  %-12s %s\n", ct.ID, ct.Description)
		for _, key := range ct.ConfigKeys {
			req := ""
			if key.Required {
				req = " (required)"
			}
			cmd.Printf("      %s%s: %s\n", key.Key, req, key.Description)
		}
	}
	return nil
}

func secretKeys(types []domain.ConnectorType, id string) map[string]bool {
	out := make(map[string]bool)
	for _, ct := range types {
		if ct.ID != id {
			continue
		}
		for _, key := range ct.ConfigKeys {
			if key.Secret {
				out[key.Key] = true
			}
		}
	}
	return out
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}
