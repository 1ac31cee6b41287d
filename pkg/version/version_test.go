package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTrimsEmbeddedVersion(t *testing.T) {
	got := Get()
	assert.Equal(t, strings.TrimSpace(Version), got)
	assert.NotContains(t, got, "\n")
}

func TestVersionNotEmptyAndPrefixed(t *testing.T) {
	s := Get()
	assert.NotEmpty(t, s)
	if s != "" {
		assert.Equal(t, byte('v'), s[0])
	}
}

func TestInfo(t *testing.T) {
	info := Info("algoroom")
	assert.True(t, strings.HasPrefix(info, "algoroom "+Get()))
	assert.Contains(t, info, runtime.GOOS)
}
