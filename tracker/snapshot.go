package tracker

import (
	"time"

	"github.com/vultisig/transfer-tracker/types"
)

// State is the tracking state of a packet hash.
type State string

const (
	StateIdle            State = "IDLE"
	StatePolling         State = "POLLING"
	StatePollingWithData State = "POLLING_WITH_DATA"
)

// Outcome is how a consumer should present the snapshot.
type Outcome string

const (
	OutcomePending   Outcome = "PENDING"
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeErrored   Outcome = "ERRORED"
)

// Snapshot is the store content at one point in time. Data and Err are independent:
// a failed poll leaves the previous Data in place.
type Snapshot struct {
	PacketHash string
	Data       types.Option[types.TransferRecord]
	Err        error
	UpdatedAt  time.Time
	Version    uint64
}

func (s Snapshot) State() State {
	switch {
	case s.PacketHash == "":
		return StateIdle
	case s.Data.IsSome():
		return StatePollingWithData
	default:
		return StatePolling
	}
}

// Outcome treats NotFound as pending.
func (s Snapshot) Outcome() Outcome {
	if rec, ok := s.Data.Get(); ok {
		switch {
		case rec.Succeeded():
			return OutcomeSucceeded
		case rec.Failed():
			return OutcomeFailed
		default:
			return OutcomePending
		}
	}
	if s.Err != nil && !types.IsNotFound(s.Err) {
		return OutcomeErrored
	}
	return OutcomePending
}

// View is the wire form of a snapshot.
type View struct {
	PacketHash string                             `json:"packet_hash" yaml:"packet_hash"`
	State      State                              `json:"state" yaml:"state"`
	Outcome    Outcome                            `json:"outcome" yaml:"outcome"`
	Data       types.Option[types.TransferRecord] `json:"data" yaml:"data"`
	Error      *types.ErrorBody                   `json:"error" yaml:"error"`
	UpdatedAt  time.Time                          `json:"updated_at" yaml:"updated_at"`
	Version    uint64                             `json:"version" yaml:"version"`
}

func (s Snapshot) View() View {
	return View{
		PacketHash: s.PacketHash,
		State:      s.State(),
		Outcome:    s.Outcome(),
		Data:       s.Data,
		Error:      types.NewErrorBody(s.Err),
		UpdatedAt:  s.UpdatedAt,
		Version:    s.Version,
	}
}
