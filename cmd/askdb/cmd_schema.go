package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"askdb/internal/store"
)

var sampleTable string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema description the pipeline prompts with",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer st.Close()

		schema, err := st.Schema(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(schema)

		if sampleTable != "" {
			res := st.TableSample(cmd.Context(), sampleTable, 5)
			if !res.Success {
				return fmt.Errorf("sample %s: %s", sampleTable, res.Err)
			}
			fmt.Printf("\nSample of %s %v:\n", sampleTable, res.Columns)
			for _, row := range res.Rows {
				fmt.Printf("  %v\n", row)
			}
		}
		return nil
	},
}

func init() {
	schemaCmd.Flags().StringVar(&sampleTable, "sample", "", "also print sample rows from this table")
}
