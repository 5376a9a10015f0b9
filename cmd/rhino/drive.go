package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rhinorover/rhino/pkg/teleop"
)

type DriveCommand struct {
	Plan string `short:"p" long:"plan" default:"drive" description:"Built-in plan (drive, maneuver) or a YAML plan file"`
	Hz   int    `long:"hz" description:"Command rate, from the config file if unset"`
}

func resolvePlan(name string) (teleop.Plan, error) {
	if p, ok := teleop.BuiltinPlan(name); ok {
		return p, nil
	}
	return teleop.LoadPlan(name)
}

func (c *DriveCommand) Execute(args []string) error {
	plan, err := resolvePlan(c.Plan)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, cfg, err := connect(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer closeRobot(r)

	hz := c.Hz
	if hz <= 0 {
		hz = cfg.Hz
	}

	res, err := teleop.RunPlan(ctx, r, plan, hz, logger)
	if errors.Is(err, context.Canceled) {
		logger.Warn("Interrupted, stopping vehicle")
		if err := r.ApplyBrake(context.Background()); err != nil {
			logger.Warn("Stop", "err", err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if res.Confirmed < res.Commands {
		logger.Warn("Some commands got no servo feedback", "commands", res.Commands, "confirmed", res.Confirmed)
	}
	return nil
}
