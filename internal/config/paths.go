package config

import (
	"path/filepath"

	"github.com/HaPhanBaoMinh/upmon/help"
)

// DefaultFile is read when present; its absence is not an error.
func DefaultFile() string {
	return filepath.Join(help.HomeDir(), ".config", "upmon", "config.yaml")
}
