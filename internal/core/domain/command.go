package domain

// PollerRequest

type PollerRequest interface {
	ActorRequest
	PollerCommand() string
}

type PollerRequestMixIn struct {
	ActorRequestMixIn
}

const (
	POLLER_COMMAND_POLL_NOW           = "poll_now"
	POLLER_COMMAND_RESET_DAILY_ENERGY = "reset_daily_energy"
)

// Poller commands

// PollNowRequest asks for an out of schedule poll.
type PollNowRequest struct {
	PollerRequestMixIn
}

func (PollNowRequest) PollerCommand() string { return POLLER_COMMAND_POLL_NOW }

type PollNowResponse struct {
	ActorResponseMixIn
	Skipped bool
}

// ResetDailyEnergyRequest is sent at midnight. An inverter that shut down at
// dusk keeps reporting yesterday's energy until it wakes up again.
type ResetDailyEnergyRequest struct {
	PollerRequestMixIn
}

func (ResetDailyEnergyRequest) PollerCommand() string { return POLLER_COMMAND_RESET_DAILY_ENERGY }

type ResetDailyEnergyResponse struct {
	ActorResponseMixIn
	Published bool
}

// ensure interface compliance
var (
	_ PollerRequest = (*PollNowRequest)(nil)
	_ PollerRequest = (*ResetDailyEnergyRequest)(nil)
)
