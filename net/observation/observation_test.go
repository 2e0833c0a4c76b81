package observation

import (
	"testing"
	"time"

	"github.com/coapclient/go-coap/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidSequenceNumber(t *testing.T) {
	now := time.Now()
	type args struct {
		old             uint32
		new             uint32
		lastEventOccurs time.Time
	}
	tests := []struct {
		name string
		args args
		want bool
	}{
		{name: "0, 1", args: args{old: 0, new: 1, lastEventOccurs: now}, want: true},
		{name: "1582, 1583", args: args{old: 1582, new: 1583, lastEventOccurs: now.Add(-time.Second)}, want: true},
		{name: "1583, 1582", args: args{old: 1583, new: 1582, lastEventOccurs: now.Add(-time.Second)}, want: false},
		{name: "equal", args: args{old: 7, new: 7, lastEventOccurs: now}, want: false},
		{name: "wrap 2^24-1, 0", args: args{old: 1<<24 - 1, new: 0, lastEventOccurs: now}, want: true},
		{name: "wrap 2^24-10, 5", args: args{old: 1<<24 - 10, new: 5, lastEventOccurs: now}, want: true},
		{name: "half window", args: args{old: 0, new: 1 << 23, lastEventOccurs: now}, want: false},
		{name: "just below half window", args: args{old: 0, new: 1<<23 - 1, lastEventOccurs: now}, want: true},
		{name: "stale but timed out", args: args{old: 1582, new: 1, lastEventOccurs: now.Add(-129 * time.Second)}, want: true},
		{name: "stale", args: args{old: 1582, new: 1, lastEventOccurs: now.Add(-time.Second)}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidSequenceNumber(tt.args.old, tt.args.new, tt.args.lastEventOccurs, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntryAcceptSequence(t *testing.T) {
	now := time.Now()
	r := NewRegistry()
	e := r.Register(message.Token("tok"))

	var delivered []uint32
	for _, seq := range []uint32{0, 5, 3, 7} {
		if e.Accept(seq, now) {
			delivered = append(delivered, seq)
		}
	}
	require.Equal(t, []uint32{0, 5, 7}, delivered)
	last, ok := e.LastSequence()
	require.True(t, ok)
	require.Equal(t, uint32(7), last)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	tok := message.Token{1, 2}
	e := r.Register(tok)
	require.Equal(t, tok, e.Token)
	_, seen := e.LastSequence()
	require.False(t, seen)

	require.True(t, r.Remove(tok))
	require.False(t, r.Remove(tok))

	// registering again starts with fresh ordering state
	require.True(t, e.Accept(9, time.Now()))
	e = r.Register(tok)
	_, seen = e.LastSequence()
	require.False(t, seen)
}
