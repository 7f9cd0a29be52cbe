package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askFormat string
	askJSON   bool
	showTrace bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question",
	Example: `  askdb ask "What was the total revenue in June 1997?" --format float
  askdb ask "What are the top 3 products by revenue?" --format "list[{str, float}]" --trace`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		a, _, cleanup, err := buildAgent(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := a.Run(cmd.Context(), question, askFormat)
		if err != nil {
			return err
		}

		if askJSON {
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			fmt.Println(string(out))
			return nil
		}

		fmt.Printf("Answer:      %v\n", res.Answer)
		fmt.Printf("Explanation: %s\n", res.Explanation)
		fmt.Printf("Confidence:  %.2f\n", res.Confidence)
		if res.SQL != "" {
			fmt.Printf("SQL:         %s\n", res.SQL)
		}
		if len(res.Citations) > 0 {
			fmt.Printf("Citations:   %s\n", strings.Join(res.Citations, ", "))
		}
		if showTrace {
			fmt.Println("Trace:")
			for _, line := range res.Trace {
				fmt.Printf("  %s\n", line)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askFormat, "format", "", "output shape hint: int, float, list[...], or free text")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "emit the full result as JSON")
	askCmd.Flags().BoolVar(&showTrace, "trace", false, "print the workflow trace")
}
