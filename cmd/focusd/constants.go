package main

// Method channel
const (
	defaultChannelName = "focus_mode/dnd"
	defaultSocketName  = "focusd.sock"
	defaultHTTPListen  = "127.0.0.1:3001"
)

// Policy backends
const (
	backendAuto  = "auto"
	backendGnome = "gnome"
	backendDunst = "dunst"
)

// GNOME: DND is the inverse of show-banners.
const (
	defaultGnomeSchema = "org.gnome.desktop.notifications"
	defaultGnomeKey    = "show-banners"
)

// dunst over the session bus
const (
	notificationsBusName = "org.freedesktop.Notifications"
	notificationsPath    = "/org/freedesktop/Notifications"
	notificationsIface   = "org.freedesktop.Notifications"
	dunstCmdIface        = "org.dunstproject.cmd0"
	dunstPausedProp      = dunstCmdIface + ".paused"
	dunstServerName      = "dunst"
)

// MQTT
const (
	defaultMQTTTopic    = "focus_mode/dnd/state"
	defaultMQTTClientID = "focusd"
	mqttQuiesceMS       = 250
	mqttPayloadOn       = "ON"
	mqttPayloadOff      = "OFF"
)

// Daemon queues
const (
	eventQueueSize     = 64
	broadcastQueueSize = 64
)

// maxIPCLineBytes bounds one line-delimited JSON call on the IPC socket.
const maxIPCLineBytes = 64 * 1024
