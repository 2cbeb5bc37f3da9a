package cmd

import (
	"fmt"
	"strings"

	"shrike/bootstrap"
	"shrike/detect"

	"github.com/spf13/cobra"
)

// newSignaturesCmd creates the 'signatures' subcommand
func newSignaturesCmd() *cobra.Command {
	var (
		platformFilter string
		familyFilter   string
		showDisabled   bool
	)

	cmd := &cobra.Command{
		Use:     "signatures",
		Aliases: []string{"sigs"},
		Short:   "List registered detection signatures",
		Long: `Display the signature catalog: built-in handlers plus declarative
definitions loaded from the configured signature directories.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap.InitConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			_, sugar, err := bootstrap.InitLogger(cfg.Debug || debugMode)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			catalog, err := bootstrap.InitCatalog(cfg, sugar)
			if err != nil {
				return err
			}

			defs := filterDefinitions(catalog.Definitions(), platformFilter, familyFilter, showDisabled)

			if outputJSON {
				return outputAsJSON(defs)
			}

			renderSignaturesTable(defs)
			return nil
		},
	}

	cmd.Flags().StringVar(&platformFilter, "platform", "", "Only show signatures for this platform")
	cmd.Flags().StringVar(&familyFilter, "family", "", "Only show signatures tagged with this family")
	cmd.Flags().BoolVar(&showDisabled, "all", false, "Include disabled signatures")

	return cmd
}

// filterDefinitions applies the listing filters. A platform filter keeps
// platform-neutral definitions; the family filter matches case-insensitively.
func filterDefinitions(defs []detect.Definition, platform, family string, showDisabled bool) []detect.Definition {
	filtered := make([]detect.Definition, 0, len(defs))
	for _, def := range defs {
		if def.Disabled && !showDisabled {
			continue
		}
		if platform != "" && def.Platform != "" && !strings.EqualFold(def.Platform, platform) {
			continue
		}
		if family != "" && !hasFamily(def.Families, family) {
			continue
		}
		filtered = append(filtered, def)
	}
	return filtered
}

func hasFamily(families []string, want string) bool {
	for _, f := range families {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
