package cmd

import (
	"fmt"
	"text/tabwriter"

	"po-reconciliation-service/cmd/reconciler/config"
	"po-reconciliation-service/internal/matcher"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var citiesAliasFile string

// citiesCmd prints the city alias table the stock check uses
var citiesCmd = &cobra.Command{
	Use:   "cities [NAME...]",
	Short: "Show how PO cities map to warehouse cities",
	Long: `Cities prints the city alias table used by the stock check, including
overrides from the config file and --city-aliases. With arguments it resolves
each name instead. Unknown cities resolve to themselves.

Examples:
  reconciler cities
  reconciler cities Surat Noida "Navi Mumbai"
  reconciler cities --city-aliases cities.yaml Surat`,
	RunE: runCities,
}

func init() {
	rootCmd.AddCommand(citiesCmd)
	citiesCmd.Flags().StringVar(&citiesAliasFile, "city-aliases", "", "YAML file with extra city aliases")
}

func runCities(cmd *cobra.Command, args []string) error {
	aliases, err := config.ResolveCityAliases(appFs, viper.GetViper(), citiesAliasFile)
	if err != nil {
		return err
	}
	resolver := matcher.NewCityResolver(aliases)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	if len(args) == 0 {
		table := resolver.Aliases()
		fmt.Fprintln(w, "CITY\tWAREHOUSE")
		for _, name := range resolver.Names() {
			fmt.Fprintf(w, "%s\t%s\n", name, table[name])
		}
		return nil
	}

	for _, name := range args {
		resolved, ok := resolver.ResolveString(name)
		if !ok {
			resolved = matcher.MissingKey
		}
		fmt.Fprintf(w, "%s\t%s\n", name, resolved)
	}
	return nil
}
