package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List scoring profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTHRESHOLD\tMIN QUALITY\tHTF\tDESCRIPTION")
		for _, name := range cfg.ProfileNames() {
			p, err := cfg.Profile(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%.0f\t%s\t%d\t%s\n", p.Name, p.BiasThreshold, p.MinQuality, p.HTFFactor, p.Description)
		}
		return tw.Flush()
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a resolved profile as YAML, usable as a config override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		p, err := cfg.Profile(args[0])
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	profilesCmd.AddCommand(profileShowCmd)
	rootCmd.AddCommand(profilesCmd)
}
