package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/hperssn/benchtop/internal/storage"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Since     time.Duration `help:"How far back to look" default:"168h"`
	Limit     int           `help:"Maximum sessions to show" default:"20"`
	Checklist string        `help:"Only show sessions of this checklist"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	repo, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if repo == nil {
		return fmt.Errorf("session history is disabled (storage.driver is %q)", cfg.Storage.Driver)
	}
	defer repo.Close()

	ctx := context.Background()

	var records []storage.SessionRecord
	if h.Checklist != "" {
		records, err = repo.GetSessionsByChecklist(ctx, h.Checklist)
		if len(records) > h.Limit {
			records = records[:h.Limit]
		}
	} else {
		records, err = repo.GetRecentSessions(ctx, time.Now().Add(-h.Since), h.Limit)
	}
	if err != nil {
		return err
	}

	stats, err := repo.GetChecklistStats(ctx, h.Checklist)
	if err != nil {
		return err
	}

	fmt.Println(renderHistory(records, stats, time.Now()))
	return nil
}

func renderHistory(records []storage.SessionRecord, stats *storage.ChecklistStats, now time.Time) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Closed", "Checklist", "Technician", "Progress", "Timers", "Duration", "Reason"})

	for _, rec := range records {
		progress := fmt.Sprintf("%d / %d", rec.CompletedSteps, rec.TotalSteps)
		if rec.AllComplete {
			progress += " done"
		}
		tech := rec.Technician
		if tech == "" {
			tech = "-"
		}
		tbl.AppendRow(table.Row{
			humanize.RelTime(rec.ClosedAt, now, "ago", "from now"),
			rec.ChecklistName,
			tech,
			progress,
			rec.TimersFinished,
			rec.Duration().Round(time.Second).String(),
			rec.CloseReason,
		})
	}

	if stats != nil {
		tbl.AppendFooter(table.Row{
			fmt.Sprintf("%s sessions", humanize.Comma(int64(stats.TotalSessions))),
			fmt.Sprintf("%.0f%% complete", stats.CompletionRate),
			fmt.Sprintf("avg %s", (time.Duration(stats.AverageDurationSec) * time.Second).Round(time.Second)),
		})
	}
	return tbl.Render()
}
