package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/models"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the configured models and aliases",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry, err := models.New(cfg.Models.Registry())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if modelsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(api.ModelList{Object: api.ObjectList, Data: registry.Models()})
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tRESOLVES TO")
		for _, m := range registry.Models() {
			target := m.ID
			if candidates := registry.Candidates(m.ID); candidates != nil {
				target = strings.Join(candidates, ", ")
			}
			if m.ID == registry.Default() {
				target += " (default)"
			}
			fmt.Fprintf(tw, "%s\t%s\n", m.ID, target)
		}
		return tw.Flush()
	},
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Print the /v1/models payload")
}
