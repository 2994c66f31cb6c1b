package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"
	"github.com/webitel/pricing-sync-service/config"
)

const (
	ServiceName      = "pricing-sync-service"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Shared price board relay and bar tools",
		Version: fmt.Sprintf("%s (%s@%s, %s)", version, branch, commit, commitDate),
		Commands: []*cli.Command{
			serverCmd(),
			displayCmd(),
			seedCmd(),
			purchaseCmd(),
			tickCmd(),
			resetCmd(),
			removeCmd(),
		},
	}
	if buildTimestamp != "" {
		app.Compiled, _ = time.Parse(time.RFC3339, buildTimestamp)
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the websocket relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config_file",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"PRICING_SYNC_CONFIG_FILE"},
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Relay listen port (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log_level",
				Usage: "debug|info|warn|error (overrides config)",
			},
		},
		Action: func(c *cli.Context) error {
			overrides, err := configOverrides(c)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig(c.String("config_file"), overrides)
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return app.Stop(ctx)
		},
	}
}

// configOverrides maps explicitly set CLI flags onto the config flag set.
func configOverrides(c *cli.Context) (*pflag.FlagSet, error) {
	fs := config.Flags()
	if c.IsSet("port") {
		if err := fs.Set("server.port", strconv.Itoa(c.Int("port"))); err != nil {
			return nil, err
		}
	}
	if c.IsSet("log_level") {
		if err := fs.Set("log.level", c.String("log_level")); err != nil {
			return nil, err
		}
	}
	return fs, nil
}
