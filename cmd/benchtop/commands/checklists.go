package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/hperssn/benchtop/internal/domain"
)

// ChecklistsCmd implements the 'checklists' command.
type ChecklistsCmd struct {
	ID string `arg:"" optional:"" help:"Show the steps of this checklist"`
}

func (c *ChecklistsCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	src, err := openCatalog(ctx, cfg.Catalog, false, g.Logger)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}

	if c.ID != "" {
		def, err := src.Get(ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Println(renderSteps(def))
		return nil
	}

	all, err := src.List(ctx)
	if err != nil {
		return err
	}
	fmt.Println(renderChecklists(all))
	return nil
}

func renderChecklists(all []*domain.Checklist) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"ID", "Name", "Device", "Repair", "Steps", "Timed", "Safety", "Est."})

	for _, def := range all {
		timed := 0
		for _, st := range def.Steps {
			if st.HasTimer() {
				timed++
			}
		}
		est := "-"
		if def.EstimatedMinutes > 0 {
			est = fmt.Sprintf("%d min", def.EstimatedMinutes)
		}
		tbl.AppendRow(table.Row{
			def.ID, def.Name, def.DeviceType, def.RepairType,
			len(def.Steps), timed, def.SafetyCriticalCount(), est,
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d checklists", len(all))})
	return tbl.Render()
}

// renderSteps lists one checklist's steps; safety-critical steps and their
// notes are highlighted.
func renderSteps(def *domain.Checklist) string {
	warn := color.New(color.FgRed, color.Bold).SprintFunc()

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(def.Name)
	tbl.AppendHeader(table.Row{"#", "Step", "Timer", "Safety"})

	for _, st := range def.Steps {
		timer := ""
		if st.HasTimer() {
			timer = st.TimerDuration().String()
		}
		title := st.Title
		note := ""
		if st.SafetyCritical {
			title = warn(st.Title)
			note = warn("! " + st.DisplaySafetyNote())
		}
		tbl.AppendRow(table.Row{strconv.Itoa(st.Order), title, timer, note})
	}
	return tbl.Render()
}
