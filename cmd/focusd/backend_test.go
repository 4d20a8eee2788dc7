package main

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
)

// fakeRunner records commands and answers Output from a canned table.
type fakeRunner struct {
	outputs map[string]string // keyed by the joined argv
	err     error

	ran     [][]string
	started [][]string
}

func (r *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	argv := append([]string{name}, args...)
	r.ran = append(r.ran, argv)
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.outputs[strings.Join(argv, " ")]), nil
}

func (r *fakeRunner) Start(name string, args ...string) error {
	r.started = append(r.started, append([]string{name}, args...))
	return r.err
}

func testGnomeConfig() GnomeBackendConfig {
	return GnomeBackendConfig{Gsettings: "gsettings", Schema: defaultGnomeSchema, Key: defaultGnomeKey}
}

func TestGnomePolicy_PolicyAccessGranted(t *testing.T) {
	writable := "gsettings writable " + defaultGnomeSchema + " " + defaultGnomeKey

	tests := []struct {
		out     string
		want    bool
		wantErr bool
	}{
		{"true\n", true, false},
		{"false\n", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		r := &fakeRunner{outputs: map[string]string{writable: tt.out}}
		got, err := newGnomePolicy(testGnomeConfig(), r).PolicyAccessGranted(context.Background())
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("output %q: got %v, %v; want %v (err=%v)", tt.out, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestGnomePolicy_SetInterruptionFilter(t *testing.T) {
	r := &fakeRunner{}
	g := newGnomePolicy(testGnomeConfig(), r)
	ctx := context.Background()

	if err := g.SetInterruptionFilter(ctx, FilterBlocked); err != nil {
		t.Fatal(err)
	}
	if err := g.SetInterruptionFilter(ctx, FilterUnrestricted); err != nil {
		t.Fatal(err)
	}

	want := [][]string{
		{"gsettings", "set", defaultGnomeSchema, defaultGnomeKey, "false"},
		{"gsettings", "set", defaultGnomeSchema, defaultGnomeKey, "true"},
	}
	if !reflect.DeepEqual(r.ran, want) {
		t.Errorf("ran = %v, want %v", r.ran, want)
	}
}

func TestGnomePolicy_RunnerError(t *testing.T) {
	boom := errors.New("exit status 1")
	g := newGnomePolicy(testGnomeConfig(), &fakeRunner{err: boom})

	if _, err := g.PolicyAccessGranted(context.Background()); !errors.Is(err, boom) {
		t.Errorf("query err = %v", err)
	}
	if err := g.SetInterruptionFilter(context.Background(), FilterBlocked); !errors.Is(err, boom) {
		t.Errorf("set err = %v", err)
	}
}

// fakeBusObject answers D-Bus calls by method name.
type fakeBusObject struct {
	replies map[string][]interface{}
	errs    map[string]error

	calls []fakeBusCall
}

type fakeBusCall struct {
	method string
	args   []interface{}
}

func (o *fakeBusObject) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	o.calls = append(o.calls, fakeBusCall{method: method, args: args})
	return &dbus.Call{Method: method, Args: args, Body: o.replies[method], Err: o.errs[method]}
}

func newFakeDunst(owned bool, serverName string) (*dunstPolicy, *fakeBusObject, *fakeBusObject) {
	bus := &fakeBusObject{replies: map[string][]interface{}{
		dbusIface + ".NameHasOwner": {owned},
	}}
	server := &fakeBusObject{replies: map[string][]interface{}{
		notificationsIface + ".GetServerInformation": {serverName, "dunstproject", "1.9.2", "1.2"},
	}}
	return &dunstPolicy{bus: bus, server: server}, bus, server
}

func TestDunstPolicy_PolicyAccessGranted(t *testing.T) {
	tests := []struct {
		name   string
		owned  bool
		server string
		want   bool
	}{
		{"dunst", true, dunstServerName, true},
		{"other server", true, "gnome-shell", false},
		{"no server", false, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, server := newFakeDunst(tt.owned, tt.server)
			got, err := d.PolicyAccessGranted(context.Background())
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("granted = %v, want %v", got, tt.want)
			}
			if !tt.owned && len(server.calls) != 0 {
				t.Errorf("server queried although name has no owner")
			}
		})
	}
}

func TestDunstPolicy_QueryError(t *testing.T) {
	d, bus, _ := newFakeDunst(true, dunstServerName)
	boom := errors.New("bus gone")
	bus.errs = map[string]error{dbusIface + ".NameHasOwner": boom}

	if _, err := d.PolicyAccessGranted(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestDunstPolicy_SetInterruptionFilter(t *testing.T) {
	d, _, server := newFakeDunst(true, dunstServerName)

	if err := d.SetInterruptionFilter(context.Background(), FilterBlocked); err != nil {
		t.Fatal(err)
	}
	if len(server.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(server.calls))
	}
	c := server.calls[0]
	if c.method != dbusPropsIface+".Set" || len(c.args) != 3 {
		t.Fatalf("call = %+v", c)
	}
	if c.args[0] != dunstCmdIface || c.args[1] != "paused" {
		t.Errorf("args = %v", c.args)
	}
	v, ok := c.args[2].(dbus.Variant)
	if !ok || v.Value() != true {
		t.Errorf("value = %#v, want variant true", c.args[2])
	}

	server.errs = map[string]error{dbusPropsIface + ".Set": errors.New("denied")}
	if err := d.SetInterruptionFilter(context.Background(), FilterUnrestricted); err == nil {
		t.Errorf("expected error")
	}
}

func TestDetectBackend(t *testing.T) {
	tests := map[string]string{
		"":             backendGnome,
		"GNOME":        backendGnome,
		"ubuntu:GNOME": backendGnome,
		"sway":         backendDunst,
		"i3":           backendDunst,
	}
	for desktop, want := range tests {
		if got := detectBackend(desktop); got != want {
			t.Errorf("detectBackend(%q) = %q, want %q", desktop, got, want)
		}
	}
}

func TestOpenPolicyService_Gnome(t *testing.T) {
	cfg := DefaultConfig().Backend
	cfg.Type = backendGnome

	policy, closer, err := openPolicyService(cfg, &fakeRunner{}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := policy.(*gnomePolicy); !ok {
		t.Errorf("policy = %T, want *gnomePolicy", policy)
	}
	if closer == nil || closer.Close() != nil {
		t.Errorf("expected a no-op closer")
	}

	cfg.Type = "kde"
	if _, closer, err := openPolicyService(cfg, &fakeRunner{}, discardLogger()); err == nil || closer == nil {
		t.Errorf("expected error and non-nil closer for unknown backend")
	}
}
