package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/webitel/pricing-sync-service/infra/client/relay"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
	"github.com/webitel/pricing-sync-service/internal/domain/pricing"
)

var relayFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "url",
		Usage:   "Relay websocket URL",
		Value:   relay.DefaultURL,
		EnvVars: []string{"PRICING_SYNC_RELAY_URL"},
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Usage: "How long to wait for the relay",
		Value: 10 * time.Second,
	},
}

var itemFlag = &cli.StringFlag{
	Name:     "item",
	Aliases:  []string{"i"},
	Usage:    "Item name as shown on the board",
	Required: true,
}

// mutation derives the next state from the one the relay seeded us with.
type mutation func(st model.SharedState, nowMillis int64) (model.SharedState, error)

func seedCmd() *cli.Command {
	return stateCmd("seed", "Add the predefined items that are not on the board yet", nil,
		func(st model.SharedState, now int64) (model.SharedState, error) {
			return pricing.SeedPredefined(st, now), nil
		})
}

func purchaseCmd() *cli.Command {
	var item string
	return stateCmd("purchase", "Record one purchase of an item", []cli.Flag{withDest(itemFlag, &item)},
		func(st model.SharedState, now int64) (model.SharedState, error) {
			out, ok := pricing.RecordPurchase(st, item, now)
			if !ok {
				return st, fmt.Errorf("unknown item %q", item)
			}
			return out, nil
		})
}

func removeCmd() *cli.Command {
	var item string
	return stateCmd("remove", "Remove an item from the board", []cli.Flag{withDest(itemFlag, &item)},
		func(st model.SharedState, _ int64) (model.SharedState, error) {
			out, ok := pricing.RemoveItem(st, item)
			if !ok {
				return st, fmt.Errorf("unknown item %q", item)
			}
			return out, nil
		})
}

func resetCmd() *cli.Command {
	return stateCmd("reset", "Reset every price to its base and clear counters", nil,
		func(st model.SharedState, now int64) (model.SharedState, error) {
			return pricing.Reset(st, now), nil
		})
}

func tickCmd() *cli.Command {
	return &cli.Command{
		Name:  "tick",
		Usage: "Recompute prices, publish the result and ask every client to refresh",
		Flags: append(append([]cli.Flag{}, relayFlags...), &cli.BoolFlag{
			Name:  "demand",
			Usage: "Use the demand-based model (±10% against average sales) instead of +5%/-2%",
		}),
		Action: func(c *cli.Context) error {
			update := pricing.UpdatePrices
			if c.Bool("demand") {
				update = pricing.UpdatePricesByDemand
			}
			return withRelay(c, func(ctx context.Context, rc *relay.Client, st model.SharedState) error {
				next := update(st, time.Now().UnixMilli())
				if err := rc.SendStateUpdate(ctx, next); err != nil {
					return err
				}
				if err := rc.SendAction(ctx, model.ActionUpdatePrices); err != nil {
					return err
				}
				printBoard(next)
				return nil
			})
		},
	}
}

func stateCmd(name, usage string, extra []cli.Flag, fn mutation) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: append(append([]cli.Flag{}, relayFlags...), extra...),
		Action: func(c *cli.Context) error {
			return withRelay(c, func(ctx context.Context, rc *relay.Client, st model.SharedState) error {
				next, err := fn(st, time.Now().UnixMilli())
				if err != nil {
					return err
				}
				if err := rc.SendStateUpdate(ctx, next); err != nil {
					return err
				}
				printBoard(next)
				return nil
			})
		},
	}
}

// withRelay connects, waits for the seeded state and runs fn with it.
func withRelay(c *cli.Context, fn func(ctx context.Context, rc *relay.Client, st model.SharedState) error) error {
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	rc := relay.New(relay.Options{
		URL:    c.String("url"),
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})

	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rc.Run(runCtx) }()
	defer func() {
		stop()
		<-done
	}()

	st, err := rc.WaitState(ctx)
	if err != nil {
		return fmt.Errorf("waiting for relay state at %s: %w", c.String("url"), err)
	}
	return fn(ctx, rc, st)
}

func withDest(f *cli.StringFlag, dest *string) *cli.StringFlag {
	cp := *f
	cp.Destination = dest
	return &cp
}

func printBoard(st model.SharedState) {
	for _, row := range boardRows(st) {
		fmt.Printf("%-14s %10s %10s %6s\n", row[0], row[1], row[2], row[3])
	}
}
