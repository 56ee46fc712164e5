package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	old := Commit
	Commit = "abc123"
	defer func() { Commit = old }()

	info := Info()
	assert.Equal(t, Version, info["version"])
	assert.Equal(t, "abc123", info["commit"])
	assert.Equal(t, runtime.Version(), info["goVersion"])
}
