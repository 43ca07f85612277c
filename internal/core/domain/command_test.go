package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPollerCommand(t *testing.T) {
	var req PollerRequest = PollNowRequest{}
	assert.Equal(t, POLLER_COMMAND_POLL_NOW, req.PollerCommand())

	req = ResetDailyEnergyRequest{}
	assert.Equal(t, POLLER_COMMAND_RESET_DAILY_ENERGY, req.PollerCommand())
}
