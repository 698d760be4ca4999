package utils

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestChromePaths(t *testing.T) {
	for _, goos := range []string{"darwin", "linux", "windows"} {
		assert.NotEmpty(t, chromePaths(goos), goos)
	}
	assert.Nil(t, chromePaths("plan9"))
}

func TestValidateSystemRequirements_TextModeSkipsChrome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	info, err := ValidateSystemRequirements(zap.New(core), "text")

	require.NoError(t, err)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Architecture)
	assert.Equal(t, 1, logs.FilterMessage("system detected").Len())
	assert.Zero(t, logs.FilterMessage("chrome found").Len())
}

func TestInstallInstructions(t *testing.T) {
	for _, goos := range []string{"linux", "darwin", "windows", "freebsd"} {
		assert.NotEmpty(t, installInstructions(goos), goos)
	}
}
