// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummary(t *testing.T) {
	assert.Equal(t, "dev", Version())
	assert.Contains(t, Summary(), "revision unknown")

	version, revision = "v1.2.3", "abc123"
	t.Cleanup(func() { version, revision = "", "" })
	assert.Equal(t, "v1.2.3", Version())
	assert.Contains(t, Summary(), "v1.2.3 (revision abc123")
}
