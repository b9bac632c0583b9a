package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/gateway"
	"github.com/tgifai/teleworker/internal/pkg/utils"
	"github.com/tgifai/teleworker/internal/reminder"
	"github.com/tgifai/teleworker/internal/schedule"
)

var reminderHwd = &ReminderRunner{}

type ReminderRunner struct{}

func (r *ReminderRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "reminder",
		Usage: "Inspect stored reminders and schedules",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List stored reminders with their kind and next firing",
				Action: r.list,
			},
			{
				Name:  "check",
				Usage: "Classify a schedule and report whether it is due",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "schedule",
						Aliases:  []string{"s"},
						Usage:    "Cron expression, interval pattern or ISO instant",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "count",
						Usage: "How many times the reminder has already fired",
					},
					&cli.StringFlag{
						Name:  "at",
						Usage: "Evaluate as of this RFC3339 instant instead of now",
					},
				},
				Action: r.check,
			},
		},
	}
}

func (r *ReminderRunner) list(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if errors.Is(err, errNotConfigured) {
		return nil
	}
	if err != nil {
		return err
	}

	store, err := reminder.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer store.Close()

	rs, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}
	if len(rs) == 0 {
		fmt.Println("No reminders stored.")
		return nil
	}

	writeReminderTable(os.Stdout, rs, gateway.NewMatcher(cfg.Scheduler), cfg.Scheduler, time.Now())
	return nil
}

func writeReminderTable(out io.Writer, rs []reminder.Reminder, m *schedule.Matcher, sc config.SchedulerConfig, now time.Time) {
	zone := sc.LocalLocation()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tWHEN\tNEXT\tCOUNT\tFLAGS")
	for _, rem := range rs {
		kind, next := "invalid", "-"
		if spec, err := m.Parse(rem.Schedule); err == nil {
			kind = string(spec.Kind())
			if at, ok := spec.Next(now, rem.TriggerCount); ok {
				next = at.In(zone).Format("2006-01-02 15:04")
			} else {
				next = "done"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(rem.ID), utils.Truncate(rem.Name, 24), kind, rem.Schedule, next, rem.TriggerCount, reminderFlags(rem))
	}
	_ = tw.Flush()
}

func reminderFlags(r reminder.Reminder) string {
	var flags []string
	if !r.Active {
		flags = append(flags, "paused")
	}
	if r.Ring {
		flags = append(flags, "ring")
	}
	if r.ConditionRef != "" {
		flags = append(flags, "gated")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (r *ReminderRunner) check(_ context.Context, cmd *cli.Command) error {
	now := time.Now()
	if s := strings.TrimSpace(cmd.String("at")); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		now = parsed
	}

	// The matcher follows the configured zones when a config exists.
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		cfg = &config.Config{}
		_ = cfg.Validate()
	}
	sc := cfg.Scheduler
	m := gateway.NewMatcher(sc)

	spec, err := m.Parse(cmd.String("schedule"))
	if err != nil {
		return err
	}
	count := int(cmd.Int("count"))
	fmt.Printf("kind:  %s\n", spec.Kind())
	fmt.Printf("due:   %t (at %s, count %d)\n", spec.Due(now, count), now.Truncate(time.Minute).Format(time.RFC3339), count)
	if next, ok := spec.Next(now, count); ok {
		fmt.Printf("next:  %s\n", next.In(sc.LocalLocation()).Format(time.RFC3339))
	} else {
		fmt.Println("next:  none")
	}
	return nil
}
