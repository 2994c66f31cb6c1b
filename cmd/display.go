package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"
	"github.com/webitel/pricing-sync-service/infra/client/relay"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
)

func displayCmd() *cli.Command {
	return &cli.Command{
		Name:    "display",
		Aliases: []string{"d"},
		Usage:   "Show the live price board in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Relay websocket URL",
				Value:   relay.DefaultURL,
				EnvVars: []string{"PRICING_SYNC_RELAY_URL"},
			},
		},
		Action: func(c *cli.Context) error {
			return runDisplay(c.Context, c.String("url"))
		},
	}
}

func runDisplay(ctx context.Context, url string) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer ui.Close()

	// Logs would corrupt the screen; keep only errors and send them to stderr.
	rc := relay.New(relay.Options{
		URL:    url,
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})

	states := make(chan model.SharedState, 1)
	rc.OnState(func(st model.SharedState) {
		// Keep only the newest state for the renderer.
		select {
		case <-states:
		default:
		}
		states <- st
	})

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = rc.Run(runCtx) }()

	board := newBoard()
	board.render(model.SharedState{}, rc.Connected())

	events := ui.PollEvents()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	current := model.SharedState{}

	for {
		select {
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				board.render(current, rc.Connected())
			}
		case st := <-states:
			current = st
			board.render(current, rc.Connected())
		case <-ticker.C:
			// Refresh the connection indicator.
			board.render(current, rc.Connected())
		case <-ctx.Done():
			return nil
		}
	}
}

type board struct {
	chart *widgets.BarChart
	table *widgets.Table
}

func newBoard() *board {
	chart := widgets.NewBarChart()
	chart.BarWidth = 12
	chart.BarGap = 2
	chart.BarColors = []ui.Color{ui.ColorGreen, ui.ColorCyan, ui.ColorYellow, ui.ColorMagenta}
	chart.NumFormatter = func(v float64) string { return fmt.Sprintf("%.2f", v) }

	table := widgets.NewTable()
	table.Title = "Prices"
	table.RowSeparator = false
	table.TextStyle = ui.NewStyle(ui.ColorWhite)

	return &board{chart: chart, table: table}
}

func (b *board) render(st model.SharedState, connected bool) {
	w, h := ui.TerminalDimensions()

	status := "offline"
	if connected {
		status = "live"
	}
	b.chart.Title = fmt.Sprintf("Price board (%s) q to quit", status)
	b.chart.Labels = make([]string, 0, len(st.Beers))
	b.chart.Data = make([]float64, 0, len(st.Beers))
	for _, beer := range st.Beers {
		b.chart.Labels = append(b.chart.Labels, beer.Name)
		b.chart.Data = append(b.chart.Data, beer.CurrentPrice)
	}
	b.table.Rows = boardRows(st)

	b.chart.SetRect(0, 0, w, h/2)
	b.table.SetRect(0, h/2, w, h)
	ui.Render(b.chart, b.table)
}

// boardRows renders the header plus one row per item: name, price, base,
// and the change against the base price.
func boardRows(st model.SharedState) [][]string {
	rows := [][]string{{"Item", "Price", "Base", "Change"}}
	for _, beer := range st.Beers {
		change := "0%"
		if beer.BasePrice > 0 {
			change = fmt.Sprintf("%+.0f%%", (beer.CurrentPrice/beer.BasePrice-1)*100)
		}
		rows = append(rows, []string{
			beer.Name,
			fmt.Sprintf("%.2f", beer.CurrentPrice),
			fmt.Sprintf("%.2f", beer.BasePrice),
			change,
		})
	}
	return rows
}
