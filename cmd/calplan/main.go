package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	appLog "calplan/internal/log"
)

const version = "0.1.0"

var cli struct {
	Version  kong.VersionFlag
	Config   string `short:"c" help:"Path to config file." type:"path" default:"./var/config.yaml" env:"CALPLAN_CONFIG"`
	Debug    bool   `help:"Log at debug level."`
	LogLevel string `help:"Override the configured log level (debug, info, warn, error)." placeholder:"LEVEL"`

	Serve ServeCmd `cmd:"" help:"Run the HTTP API with periodic refresh." default:"1"`
	Month MonthCmd `cmd:"" help:"Print a month grid."`
	Task  struct {
		Add  TaskAddCmd  `cmd:"" help:"Add a planned task."`
		List TaskListCmd `cmd:"" help:"List planned tasks."`
		Edit TaskEditCmd `cmd:"" help:"Edit a planned task."`
		Rm   TaskRmCmd   `cmd:"" help:"Remove a planned task."`
	} `cmd:"" help:"Manage planned tasks."`
	Ask   AskCmd `cmd:"" help:"Send a request to the assistant and store its reply."`
	Event struct {
		Add EventAddCmd `cmd:"" help:"Add an event to the calendar."`
		Rm  EventRmCmd  `cmd:"" help:"Remove an event from the calendar."`
	} `cmd:"" help:"Manage calendar events."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("calplan"),
		kong.Description("Month calendar with planned tasks and an assistant bridge"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": version},
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	app := &App{ConfigPath: cli.Config, LogLevel: cli.LogLevel}
	if cli.Debug {
		app.LogLevel = "debug"
	}
	kctx.BindTo(ctx, (*context.Context)(nil))
	err := kctx.Run(app)
	if cerr := app.Close(); cerr != nil {
		appLog.Error("close failed", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
