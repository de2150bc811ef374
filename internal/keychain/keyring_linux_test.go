//go:build linux

package keychain

import (
	"errors"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestBusErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"service not running", dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}, true},
		{"access denied", dbus.Error{Name: "org.freedesktop.DBus.Error.AccessDenied"}, true},
		{"transport closed", dbus.ErrClosed, true},
		{"service rejected call", dbus.Error{Name: "org.freedesktop.Secret.Error.NoSuchObject"}, false},
		{"unknown method", dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownMethod"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := busError("searching secret service", tt.err)
			if got := errors.Is(err, ErrListUnavailable); got != tt.unavailable {
				t.Errorf("errors.Is(ErrListUnavailable) = %v, want %v (%v)", got, tt.unavailable, err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("cause not wrapped: %v", err)
			}
			if !strings.HasPrefix(strings.TrimPrefix(err.Error(), ErrListUnavailable.Error()+": "), "searching secret service") {
				t.Errorf("message = %q", err.Error())
			}
		})
	}
}
