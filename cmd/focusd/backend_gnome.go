package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// gnomePolicy drives GNOME's notification banners through gsettings.
//
// GNOME has no separate interruption filter: "Do Not Disturb" in the shell is
// show-banners=false. Policy access is the key's writability, which is false
// when the key is locked down by the administrator (dconf lockdown).
type gnomePolicy struct {
	runner    commandRunner
	gsettings string
	schema    string
	key       string
}

func newGnomePolicy(cfg GnomeBackendConfig, runner commandRunner) *gnomePolicy {
	if runner == nil {
		runner = execRunner{}
	}
	return &gnomePolicy{
		runner:    runner,
		gsettings: cfg.Gsettings,
		schema:    cfg.Schema,
		key:       cfg.Key,
	}
}

func (g *gnomePolicy) PolicyAccessGranted(ctx context.Context) (bool, error) {
	out, err := g.runner.Output(ctx, g.gsettings, "writable", g.schema, g.key)
	if err != nil {
		return false, err
	}
	writable, err := strconv.ParseBool(strings.TrimSpace(string(out)))
	if err != nil {
		return false, fmt.Errorf("parse gsettings writable output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return writable, nil
}

func (g *gnomePolicy) SetInterruptionFilter(ctx context.Context, filter InterruptionFilter) error {
	showBanners := !filter.Blocked()
	_, err := g.runner.Output(ctx, g.gsettings, "set", g.schema, g.key, strconv.FormatBool(showBanners))
	return err
}
