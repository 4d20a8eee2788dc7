package main

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	dbusPropsIface = "org.freedesktop.DBus.Properties"
	dbusIface      = "org.freedesktop.DBus"
)

// dbusObject is the subset of dbus.BusObject the dunst backend needs.
type dbusObject interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// dunstPolicy pauses and resumes dunst over the session bus.
//
// Policy access is granted when the notification server on the bus is dunst:
// another server would not understand org.dunstproject.cmd0.
type dunstPolicy struct {
	conn   *dbus.Conn // nil in tests
	bus    dbusObject // org.freedesktop.DBus
	server dbusObject // org.freedesktop.Notifications
}

func newDunstPolicy() (*dunstPolicy, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return &dunstPolicy{
		conn:   conn,
		bus:    conn.BusObject(),
		server: conn.Object(notificationsBusName, notificationsPath),
	}, nil
}

func (d *dunstPolicy) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func (d *dunstPolicy) PolicyAccessGranted(ctx context.Context) (bool, error) {
	var owned bool
	if err := d.bus.CallWithContext(ctx, dbusIface+".NameHasOwner", 0, notificationsBusName).Store(&owned); err != nil {
		return false, fmt.Errorf("query %s owner: %w", notificationsBusName, err)
	}
	if !owned {
		return false, nil
	}

	// GetServerInformation -> (name, vendor, version, spec_version)
	var name, vendor, version, specVersion string
	call := d.server.CallWithContext(ctx, notificationsIface+".GetServerInformation", 0)
	if err := call.Store(&name, &vendor, &version, &specVersion); err != nil {
		return false, fmt.Errorf("get notification server information: %w", err)
	}
	return name == dunstServerName, nil
}

func (d *dunstPolicy) SetInterruptionFilter(ctx context.Context, filter InterruptionFilter) error {
	call := d.server.CallWithContext(ctx, dbusPropsIface+".Set", 0,
		dunstCmdIface, "paused", dbus.MakeVariant(filter.Blocked()))
	if call.Err != nil {
		return fmt.Errorf("set %s: %w", dunstPausedProp, call.Err)
	}
	return nil
}
