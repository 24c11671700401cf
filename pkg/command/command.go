package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/itohio/feedflow/pkg/feed"
)

// ErrUnknownCommand is returned for text that matches no command.
var ErrUnknownCommand = errors.New("unknown command")

// Kind identifies a parsed command.
type Kind int

const (
	KindUnknown Kind = iota
	KindRun
	KindStop
	KindStatus
	KindFeedNow
	KindServoOpen
	KindServoClose
)

func (k Kind) String() string {
	switch k {
	case KindRun:
		return "RUN"
	case KindStop:
		return "STOP"
	case KindStatus:
		return "STATUS"
	case KindFeedNow:
		return "FEED_NOW"
	case KindServoOpen:
		return "SERVO_OPEN"
	case KindServoClose:
		return "SERVO_CLOSE"
	default:
		return "UNKNOWN"
	}
}

// Command is a command parsed once at the transport boundary.
type Command struct {
	Kind     Kind
	AmountKg float32 // FEED_NOW only
}

// Policy controls keyword matching.
type Policy struct {
	// FoldCase matches every keyword case-insensitively. Otherwise only
	// RUN/START/STOP/HALT/STATUS are case-insensitive.
	FoldCase bool
}

const feedNowPrefix = "FEED_NOW:"

// Parse turns one line of input into a Command. Surrounding whitespace and
// line terminators are trimmed before matching.
func Parse(line string, p Policy) (Command, error) {
	in := strings.TrimSpace(line)

	switch strings.ToUpper(in) {
	case "RUN", "START":
		return Command{Kind: KindRun}, nil
	case "STOP", "HALT":
		return Command{Kind: KindStop}, nil
	case "STATUS":
		return Command{Kind: KindStatus}, nil
	}

	match := in
	if p.FoldCase {
		match = strings.ToUpper(in)
	}

	switch {
	case match == "SERVO_OPEN":
		return Command{Kind: KindServoOpen}, nil
	case match == "SERVO_CLOSE":
		return Command{Kind: KindServoClose}, nil
	case strings.HasPrefix(match, feedNowPrefix):
		amount, err := parseAmount(in[len(feedNowPrefix):])
		if err != nil {
			return Command{Kind: KindFeedNow}, err
		}
		return Command{Kind: KindFeedNow, AmountKg: amount}, nil
	}

	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, in)
}

// decimalChars is every character a plain decimal amount may contain.
// ParseFloat alone would also take hex floats and digit separators.
const decimalChars = "0123456789.+-eE"

func parseAmount(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if strings.Trim(s, decimalChars) != "" {
		return 0, fmt.Errorf("%w: malformed %q", feed.ErrInvalidAmount, s)
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed %q", feed.ErrInvalidAmount, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: malformed %q", feed.ErrInvalidAmount, s)
	}
	return float32(v), nil
}
