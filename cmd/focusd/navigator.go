package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gen2brain/beeep"
)

const (
	grantTitle   = "Focus mode needs permission"
	grantMessage = "Allow focusd to change Do Not Disturb, then try again."
)

// commandNavigator opens a settings application. It never waits for it.
type commandNavigator struct {
	runner commandRunner
	argv   []string
}

func (n commandNavigator) OpenPolicyAccessSettings(context.Context) error {
	if len(n.argv) == 0 {
		return nil
	}
	return n.runner.Start(n.argv[0], n.argv[1:]...)
}

// notifier posts a desktop notification.
type notifier func(title, message string) error

func beeepNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// notifyNavigator asks the user, through a desktop notification, to grant
// access. Used where there is no settings screen to open (e.g. dunst).
type notifyNavigator struct {
	notify notifier
}

func (n notifyNavigator) OpenPolicyAccessSettings(context.Context) error {
	return n.notify(grantTitle, grantMessage)
}

// navigators tries every member; failures are joined.
type navigators []SettingsNavigator

func (ns navigators) OpenPolicyAccessSettings(ctx context.Context) error {
	var errs []error
	for _, n := range ns {
		if err := n.OpenPolicyAccessSettings(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newSettingsNavigator builds the navigator chain from config. It returns nil
// when nothing is configured.
func newSettingsNavigator(cfg SettingsConfig, runner commandRunner, notify notifier, logger *slog.Logger) SettingsNavigator {
	var ns navigators
	if len(cfg.Command) > 0 {
		ns = append(ns, commandNavigator{runner: runner, argv: cfg.Command})
	}
	if cfg.Notify && notify != nil {
		ns = append(ns, notifyNavigator{notify: notify})
	}
	if len(ns) == 0 {
		logger.Warn("no settings navigator configured; unauthorized calls will only be reported")
		return nil
	}
	return ns
}
