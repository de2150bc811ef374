//go:build windows

package keychain

import (
	"fmt"
	"strings"

	"github.com/danieljoos/wincred"
)

// listKeys enumerates generic credentials written by go-keyring, whose
// target names are "<scope>:<key>".
func listKeys(scope string) ([]string, error) {
	prefix := scope + ":"
	creds, err := wincred.FilteredList(prefix + "*")
	if err != nil {
		return nil, fmt.Errorf("credential manager: %w", err)
	}

	keys := make([]string, 0, len(creds))
	for _, c := range creds {
		if c.UserName != "" {
			keys = append(keys, c.UserName)
			continue
		}
		keys = append(keys, strings.TrimPrefix(c.TargetName, prefix))
	}
	return keys, nil
}
