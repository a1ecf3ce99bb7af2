package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/veresiye/defter/jobs"
)

// JobTrigger enqueues jobs by name.
type JobTrigger interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
}

// Jobs runs the "jobs trigger <name>" and "jobs stats" subcommands.
func Jobs(ctx context.Context, trigger JobTrigger, inspector jobs.QueueInspector, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("jobs: expected trigger or stats")
	}
	switch args[0] {
	case "trigger":
		if len(args) != 2 {
			return errors.New("jobs trigger: expected exactly one job name")
		}
		info, err := trigger.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return err
	case "stats":
		stats, err := jobs.InspectQueue(inspector)
		if err != nil {
			return fmt.Errorf("jobs stats: %w", err)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", args[0])
	}
}
