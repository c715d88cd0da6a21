package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"todo-relevance-backend/internal/model"
	"todo-relevance-backend/internal/ranking"
)

type rankOptions struct {
	file           string
	ageWeight      float64
	priorityWeight float64
	now            string
	algorithm      string
}

func newRankCmd() *cobra.Command {
	opts := rankOptions{}

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a JSON array of todos read from stdin or --file",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if opts.file != "" && opts.file != "-" {
				f, err := os.Open(opts.file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runRank(in, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Read todos from this file instead of stdin")
	cmd.Flags().Float64Var(&opts.ageWeight, "age-weight", ranking.DefaultAgeWeight, "Age weight in [0,1]")
	cmd.Flags().Float64Var(&opts.priorityWeight, "priority-weight", ranking.DefaultPriorityWeight, "Priority weight in [0,1]")
	cmd.Flags().StringVar(&opts.now, "now", "", "Ranking instant (RFC 3339), defaults to the current time")
	cmd.Flags().StringVar(&opts.algorithm, "algorithm", string(ranking.NonLinear), "nonlinear or linear")
	return cmd
}

func runRank(in io.Reader, out io.Writer, opts rankOptions) error {
	settings, err := ranking.NewSortSettings(opts.ageWeight, opts.priorityWeight)
	if err != nil {
		return err
	}

	algo, ok := ranking.ParseAlgorithm(opts.algorithm)
	if !ok {
		return fmt.Errorf("unknown algorithm %q", opts.algorithm)
	}

	now := time.Now()
	if opts.now != "" {
		now, err = time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
	}

	var todos []model.Todo
	if err := json.NewDecoder(in).Decode(&todos); err != nil {
		return fmt.Errorf("decoding todos: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(ranking.RankWith(algo, todos, settings, now))
}
