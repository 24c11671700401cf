package command

import (
	"testing"

	"github.com/itohio/feedflow/pkg/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		policy  Policy
		want    Command
		wantErr error
	}{
		{name: "run", line: "RUN", want: Command{Kind: KindRun}},
		{name: "start lower case", line: "start", want: Command{Kind: KindRun}},
		{name: "stop with newline", line: "STOP\r\n", want: Command{Kind: KindStop}},
		{name: "halt mixed case", line: "  Halt ", want: Command{Kind: KindStop}},
		{name: "status", line: "status\n", want: Command{Kind: KindStatus}},
		{name: "servo open", line: "SERVO_OPEN", want: Command{Kind: KindServoOpen}},
		{name: "servo close trailing space", line: "SERVO_CLOSE \n", want: Command{Kind: KindServoClose}},
		{name: "feed now", line: "FEED_NOW:0.5", want: Command{Kind: KindFeedNow, AmountKg: 0.5}},
		{name: "feed now spaced amount", line: "FEED_NOW: 1.25\r\n", want: Command{Kind: KindFeedNow, AmountKg: 1.25}},
		{name: "feed now zero parses", line: "FEED_NOW:0", want: Command{Kind: KindFeedNow, AmountKg: 0}},
		{name: "feed now malformed", line: "FEED_NOW:abc", want: Command{Kind: KindFeedNow}, wantErr: feed.ErrInvalidAmount},
		{name: "feed now empty", line: "FEED_NOW:", want: Command{Kind: KindFeedNow}, wantErr: feed.ErrInvalidAmount},
		{name: "feed now nan", line: "FEED_NOW:NaN", want: Command{Kind: KindFeedNow}, wantErr: feed.ErrInvalidAmount},
		{name: "feed now infinity", line: "FEED_NOW:+Inf", want: Command{Kind: KindFeedNow}, wantErr: feed.ErrInvalidAmount},
		{name: "feed now hex float", line: "FEED_NOW:0x1p-1", want: Command{Kind: KindFeedNow}, wantErr: feed.ErrInvalidAmount},
		{name: "feed now digit separator", line: "FEED_NOW:1_0", want: Command{Kind: KindFeedNow}, wantErr: feed.ErrInvalidAmount},
		{name: "feed now exponent", line: "FEED_NOW:5e-1", want: Command{Kind: KindFeedNow, AmountKg: 0.5}},
		{name: "servo open is case sensitive", line: "servo_open", wantErr: ErrUnknownCommand},
		{name: "feed now is case sensitive", line: "feed_now:1", wantErr: ErrUnknownCommand},
		{name: "fold case servo open", line: "servo_open", policy: Policy{FoldCase: true}, want: Command{Kind: KindServoOpen}},
		{name: "fold case feed now", line: "Feed_Now:2", policy: Policy{FoldCase: true}, want: Command{Kind: KindFeedNow, AmountKg: 2}},
		{name: "empty", line: "\r\n", wantErr: ErrUnknownCommand},
		{name: "garbage", line: "OPEN SESAME", wantErr: ErrUnknownCommand},
		{name: "prefix of keyword", line: "RUNNING", wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line, tt.policy)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "FEED_NOW", KindFeedNow.String())
	assert.Equal(t, "UNKNOWN", Kind(99).String())
}
