package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_RejectsBadBundleSize(t *testing.T) {
	c := Default()
	c.BundleSize = 0
	assert.Error(t, c.Validate())

	c.BundleSize = 9
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsUnknownTSCMode(t *testing.T) {
	c := Default()
	c.TSC = "bogus"
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsUnknownRegisterMode(t *testing.T) {
	c := Default()
	c.Register = "bogus"
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsBadBitmapExponent(t *testing.T) {
	c := Default()
	c.BitmapPageSizeExponent = 2
	assert.Error(t, c.Validate())
}

func TestRegisterMode_Variant(t *testing.T) {
	v, ok := RegisterInt.Variant()
	require.True(t, ok)
	assert.Equal(t, "switch", v.String())

	v, ok = RegisterStall.Variant()
	require.True(t, ok)
	assert.Equal(t, "stall", v.String())

	_, ok = RegisterNone.Variant()
	assert.False(t, ok)
}

func TestFromEnv_OverridesDefaults(t *testing.T) {
	t.Setenv("LAME_BUNDLE_SIZE", "4")
	t.Setenv("LAME_TSC", "pretend")
	t.Setenv("LAME_REGISTER", "pmu")
	t.Setenv("LAME_BITMAP_PGSZ_FACTOR", "16")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, uint32(4), c.BundleSize)
	assert.Equal(t, TSCPretend, c.TSC)
	assert.Equal(t, RegisterPMU, c.Register)
	assert.Equal(t, 16, c.BitmapPageSizeExponent)
}

func TestValidate_NegativeBitmapExponentDisablesRatherThanErrors(t *testing.T) {
	c := Default()
	c.BitmapPageSizeExponent = -1
	assert.NoError(t, c.Validate())
	assert.False(t, c.BitmapEnabled())
}

func TestFromEnv_BadIntegerReturnsError(t *testing.T) {
	t.Setenv("LAME_BUNDLE_SIZE", "not-a-number")
	_, err := FromEnv()
	assert.Error(t, err)
	os.Unsetenv("LAME_BUNDLE_SIZE")
}
