package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundAmount(t *testing.T) {
	assert.Equal(t, 1.123456789, RoundAmount(1.1234567891))
	assert.Equal(t, 0.0, RoundAmount(0))
	assert.Equal(t, 0.0, RoundAmount(-1.5))
}

func TestTrimAmount(t *testing.T) {
	assert.Equal(t, 5.0, TrimAmount(10, 0.5))
	assert.Equal(t, 0.0, TrimAmount(10, 0))
	assert.Equal(t, 0.0, TrimAmount(0, 0.5))
	// pct above 1 caps at the full position value.
	assert.Equal(t, 10.0, TrimAmount(10, 1.5))
	// 0.1*0.3 in float64 is 0.030000000000000002; decimals keep it exact.
	assert.Equal(t, 0.03, TrimAmount(0.1, 0.3))
}

func TestDeployableAmount(t *testing.T) {
	assert.Equal(t, 4.0, DeployableAmount(5, 1))
	assert.Equal(t, 0.0, DeployableAmount(1, 1))
	assert.Equal(t, 0.0, DeployableAmount(0.5, 1))
}
