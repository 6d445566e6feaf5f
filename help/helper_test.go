package help_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HaPhanBaoMinh/upmon/help"
)

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/ops")

	assert.Equal(t, "/home/ops", help.HomeDir())
	assert.Equal(t, "/home/ops", help.ExpandHome("~"))
	assert.Equal(t, filepath.Join("/home/ops", ".cache", "upmon.log"), help.ExpandHome("~/.cache/upmon.log"))
	assert.Equal(t, "/var/log/upmon.log", help.ExpandHome("/var/log/upmon.log"))
	assert.Equal(t, "relative~/x", help.ExpandHome("relative~/x"))
}
