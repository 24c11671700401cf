package command

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itohio/feedflow/pkg/feed"
)

// Replies sent back to the requesting transport.
const (
	ReplyRunning        = "SERVO_RUNNING"
	ReplyStopped        = "SERVO_STOPPED"
	ReplyOpened         = "SERVO_OPENED"
	ReplyClosed         = "SERVO_CLOSED"
	ReplyInvalidAmount  = "ERROR:INVALID_AMOUNT"
	ReplyFeedInProgress = "ERROR:FEED_IN_PROGRESS"
	ReplyUnknownCommand = "ERROR:UNKNOWN_COMMAND"
)

// Controller is the part of feed.Controller the handler drives.
type Controller interface {
	RequestFeed(targetKg float32, now time.Time, currentKg float32) (feed.Request, error)
	ManualOpen()
	ManualClose()
	SetRunning(running bool)
	Status() feed.Status
}

var _ Controller = (*feed.Controller)(nil)

// Handler applies parsed commands to the feed controller. Both transports
// share one Handler, so the grammar is identical on each of them.
type Handler struct {
	ctrl   Controller
	weight func() float32 // current filtered weight
	policy Policy
}

// NewHandler creates a handler. weight returns the current filtered weight
// and is sampled when a FEED_NOW is accepted.
func NewHandler(ctrl Controller, weight func() float32, policy Policy) *Handler {
	return &Handler{
		ctrl:   ctrl,
		weight: weight,
		policy: policy,
	}
}

// Handle parses and applies one line. It always returns the outcome frame to
// send back; err is non-nil when the command was rejected. A rejected command
// never changes state.
func (h *Handler) Handle(line string, now time.Time) (string, error) {
	cmd, err := Parse(line, h.policy)
	if err != nil {
		return h.reject(cmd, err)
	}

	switch cmd.Kind {
	case KindRun:
		h.ctrl.SetRunning(true)
		return ReplyRunning, nil
	case KindStop:
		h.ctrl.SetRunning(false)
		return ReplyStopped, nil
	case KindStatus:
		return FormatStatus(h.ctrl.Status(), h.weight()), nil
	case KindServoOpen:
		h.ctrl.ManualOpen()
		return ReplyOpened, nil
	case KindServoClose:
		h.ctrl.ManualClose()
		return ReplyClosed, nil
	case KindFeedNow:
		req, err := h.ctrl.RequestFeed(cmd.AmountKg, now, h.weight())
		if err != nil {
			return h.reject(cmd, err)
		}
		log.Printf("feed: request %s started, target %.3f kg from %.3f kg", req.ID, req.TargetKg, req.StartWeightKg)
		return fmt.Sprintf("FEED_STARTED:%.3f", req.TargetKg), nil
	}

	return h.reject(cmd, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Kind))
}

func (h *Handler) reject(cmd Command, err error) (string, error) {
	switch {
	case errors.Is(err, feed.ErrInvalidAmount):
		log.Printf("InvalidAmount: %v", err)
		return ReplyInvalidAmount, err
	case errors.Is(err, feed.ErrFeedInProgress):
		log.Printf("%s rejected: %v", cmd.Kind, err)
		return ReplyFeedInProgress, err
	default:
		log.Printf("UnknownCommand: %v", err)
		return ReplyUnknownCommand, err
	}
}

// FormatStatus renders the on-demand status response.
func FormatStatus(s feed.Status, weightKg float32) string {
	return fmt.Sprintf("STATUS:%s,running=%d,manual=%d,target=%.3f,dispensed=%.3f,weight=%.3f",
		s.State, b2i(s.Running), b2i(s.Manual), s.TargetKg, s.DispensedKg, weightKg)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
