package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"askdb/internal/agent"
)

var evalWorkers int

// evalCase is one line of the JSONL evaluation file.
type evalCase struct {
	Question   string `json:"question"`
	FormatHint string `json:"format_hint"`
}

type evalOutcome struct {
	c   evalCase
	res agent.Result
}

var evalCmd = &cobra.Command{
	Use:   "eval [file]",
	Short: "Run a batch of questions from a JSONL file",
	Long: `Runs every question in the file through the pipeline and prints a
summary table. Each line is a JSON object with "question" and
"format_hint" keys. Runs are independent, so they execute concurrently
up to the worker limit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cases, err := loadCases(args[0])
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			return fmt.Errorf("no cases in %s", args[0])
		}

		a, st, cleanup, err := buildAgent(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		outcomes := make([]evalOutcome, len(cases))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(evalWorkers)
		for i, c := range cases {
			g.Go(func() error {
				res, err := a.Run(ctx, c.Question, c.FormatHint)
				if err != nil {
					return fmt.Errorf("case %d: %w", i+1, err)
				}
				outcomes[i] = evalOutcome{c: c, res: res}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Question", "Answer", "Confidence", "Repairs", "SQL Valid"})
		table.SetColWidth(60)
		for _, o := range outcomes {
			valid := "-"
			if o.res.SQL != "" {
				if ok, _ := st.Validate(cmd.Context(), o.res.SQL); ok {
					valid = "yes"
				} else {
					valid = "no"
				}
			}
			table.Append([]string{
				o.c.Question,
				fmt.Sprintf("%v", o.res.Answer),
				fmt.Sprintf("%.2f", o.res.Confidence),
				fmt.Sprintf("%d", countRepairs(o.res.Trace)),
				valid,
			})
		}
		table.Render()
		return nil
	},
}

func loadCases(path string) ([]evalCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open eval file: %w", err)
	}
	defer f.Close()

	var cases []evalCase
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var c evalCase
		if err := json.Unmarshal(text, &c); err != nil {
			return nil, fmt.Errorf("parse line %d: %w", line, err)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read eval file: %w", err)
	}
	return cases, nil
}

func countRepairs(trace []string) int {
	n := 0
	for _, l := range trace {
		if len(l) >= 6 && l[:6] == "REPAIR" {
			n++
		}
	}
	return n
}

func init() {
	evalCmd.Flags().IntVar(&evalWorkers, "workers", 4, "max concurrent runs")
}
