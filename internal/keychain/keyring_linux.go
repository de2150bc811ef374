//go:build linux

package keychain

import (
	"errors"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

const (
	secretServiceName = "org.freedesktop.secrets"
	secretServicePath = dbus.ObjectPath("/org/freedesktop/secrets")
	searchItemsMethod = "org.freedesktop.Secret.Service.SearchItems"
	itemAttributes    = "org.freedesktop.Secret.Item.Attributes"
)

// sessionBus connects to the user's session bus. When
// DBUS_SESSION_BUS_ADDRESS is unset (cron, ssh, some containers) it falls
// back to the systemd per-user socket.
func sessionBus() (*dbus.Conn, error) {
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" {
		return dbus.ConnectSessionBus()
	}
	return dbus.Connect(fmt.Sprintf("unix:path=/run/user/%d/bus", unix.Getuid()))
}

// listKeys searches the Secret Service for items carrying go-keyring's
// service attribute and returns their username attribute. Locked items
// are included: their attributes are readable without unlocking.
func listKeys(scope string) ([]string, error) {
	conn, err := sessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to session bus: %w", ErrListUnavailable, err)
	}
	defer conn.Close()

	svc := conn.Object(secretServiceName, secretServicePath)

	var unlocked, locked []dbus.ObjectPath
	call := svc.Call(searchItemsMethod, 0, map[string]string{"service": scope})
	if err := call.Store(&unlocked, &locked); err != nil {
		return nil, busError("searching secret service", err)
	}

	seen := make(map[string]bool)
	keys := make([]string, 0, len(unlocked)+len(locked))
	for _, path := range append(unlocked, locked...) {
		prop, err := conn.Object(secretServiceName, path).GetProperty(itemAttributes)
		if err != nil {
			return nil, busError("reading attributes of "+string(path), err)
		}
		attrs, ok := prop.Value().(map[string]string)
		if !ok {
			continue
		}
		key := attrs["username"]
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}

// unreachableBusErrors are D-Bus error names meaning no usable Secret Service
// answered.
var unreachableBusErrors = map[string]bool{
	"org.freedesktop.DBus.Error.ServiceUnknown": true,
	"org.freedesktop.DBus.Error.NameHasNoOwner": true,
	"org.freedesktop.DBus.Error.NoReply":        true,
	"org.freedesktop.DBus.Error.NoServer":       true,
	"org.freedesktop.DBus.Error.Disconnected":   true,
	"org.freedesktop.DBus.Error.AccessDenied":   true,
	"org.freedesktop.DBus.Error.Spawn.Failed":   true,
}

// busError wraps a failed Secret Service call. Transport failures and the
// error names above mark enumeration as unavailable; any other reply from
// the service is a real failure.
func busError(op string, err error) error {
	var reply dbus.Error
	if errors.As(err, &reply) && !unreachableBusErrors[reply.Name] {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrListUnavailable, op, err)
}
