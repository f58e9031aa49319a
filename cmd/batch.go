package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/riskintel-cli/internal/model"
)

var (
	batchFile    string
	batchWorkers int
	batchLimit   int
	batchOutput  string
	batchUser    string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze a CSV of tasks concurrently",
	Long: `Reads tasks from a CSV with a header row and analyzes them through the
normal routing flow, several at a time.

Expected columns: description (required), type, impact, context_tokens,
strict_json, multi_document.

Example:
  riskintel batch --file tasks.csv --workers 4 --output results.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		tasks, err := parseTaskCSV(batchFile)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(tasks) > batchLimit {
			tasks = tasks[:batchLimit]
		}
		if len(tasks) == 0 {
			return eris.New("batch: no tasks in file")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Service.Batch(ctx, tasks, batchWorkers, batchUser)
		if err != nil {
			return eris.Wrap(err, "batch analyze")
		}

		zap.L().Info("batch complete",
			zap.Int("tasks", len(tasks)),
			zap.Int("succeeded", len(result.Results)),
			zap.Int("failed", len(result.Errors)),
		)
		for taskID, taskErr := range result.Errors {
			zap.L().Warn("task failed", zap.String("task_id", taskID), zap.Error(taskErr))
		}

		out := os.Stdout
		if batchOutput != "" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrapf(err, "batch: create output %s", batchOutput)
			}
			defer f.Close()
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Results)
	},
}

// parseTaskCSV reads tasks from a headered CSV file.
func parseTaskCSV(path string) ([]model.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read header of %s", path)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := col["description"]; !ok {
		return nil, eris.Errorf("batch: %s has no description column", path)
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var tasks []model.Task
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "batch: read %s line %d", path, line)
		}

		task := model.NewTask(field(record, "description"))
		if v := field(record, "type"); v != "" {
			task.Type = model.TaskType(v)
		}
		if v := field(record, "impact"); v != "" {
			impact, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "batch: bad impact on line %d", line)
			}
			task.BusinessImpact = impact
		}
		if v := field(record, "context_tokens"); v != "" {
			tokens, err := strconv.Atoi(v)
			if err != nil {
				return nil, eris.Wrapf(err, "batch: bad context_tokens on line %d", line)
			}
			task.ContextLength = tokens
		}
		task.RequiresStrictJSON = parseBool(field(record, "strict_json"))
		task.MultiDocument = parseBool(field(record, "multi_document"))

		if err := task.Validate(); err != nil {
			return nil, eris.Wrapf(err, "batch: invalid task on line %d", line)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	return err == nil && v
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "CSV file of tasks (required)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 4, "concurrent analyses")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "process at most N tasks (0 = all)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "write results JSON to file instead of stdout")
	batchCmd.Flags().StringVar(&batchUser, "user", "cli", "user recorded on audit events")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}
