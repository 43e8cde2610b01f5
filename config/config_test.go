// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/gpu-profiler/profiler"
)

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		modify func(*Config)
		errMsg string
	}{
		"default": {
			modify: func(*Config) {},
		},
		"no gfx": {
			modify: func(c *Config) { c.Gfx = "" },
			errMsg: "no GPU name given",
		},
		"small command buffer": {
			modify: func(c *Config) { c.CommandBufferSize = 1024 },
			errMsg: "command buffer size 1024 below 65536",
		},
		"unaligned command buffer": {
			modify: func(c *Config) { c.CommandBufferAddr = 0x1002 },
			errMsg: "command buffer address 0x1002 is not dword aligned",
		},
		"unaligned output buffer": {
			modify: func(c *Config) { c.OutputBufferAddr = 0x1100 },
			errMsg: "output buffer address 0x1100 is not 4096 byte aligned",
		},
		"empty output buffer": {
			modify: func(c *Config) { c.OutputBufferSize = 0 },
			errMsg: "output buffer size is zero",
		},
		"policy": {
			modify: func(c *Config) { c.Policy = "lenient" },
			errMsg: `unknown validation policy "lenient"`,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc.modify(&cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tc.errMsg)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Gfx = ""
	cfg.OutputBufferSize = 0
	assert.EqualError(t, cfg.Validate(), "no GPU name given\noutput buffer size is zero")
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("REJECT")
	require.NoError(t, err)
	assert.Equal(t, profiler.RejectInvalid, p)

	p, err = ParsePolicy("pass-through")
	require.NoError(t, err)
	assert.Equal(t, profiler.PassThrough, p)
}
