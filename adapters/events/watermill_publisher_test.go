package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/verigate/core"
)

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	return pubSub
}

func receive(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestWatermillPublisher_PublishSolved(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pubSub := newPubSub(t)

	messages, err := pubSub.Subscribe(ctx, SolvedTopic)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)
	err = pub.PublishSolved(ctx, core.Session{ID: "vg_1", SiteKey: "alpha", Kind: core.ChallengeClick, Solved: true},
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	require.NoError(t, err)

	msg := receive(t, messages)
	assert.NotEmpty(t, msg.UUID)

	var event SolvedEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, "vg_1", event.SessionID)
	assert.Equal(t, "alpha", event.SiteKey)
	assert.Equal(t, core.ChallengeClick, event.Challenge)
	assert.False(t, event.SolvedAt.IsZero())
	assert.Equal(t, "Safari", event.Browser)
	assert.Equal(t, "iOS", event.OS)
	assert.Equal(t, DeviceMobile, event.Device)
}

func TestWatermillPublisher_PublishVerification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pubSub := newPubSub(t)

	messages, err := pubSub.Subscribe(ctx, VerificationTopic)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)
	require.NoError(t, pub.PublishVerification(ctx, "beta", core.Reject(core.ReasonSiteMismatch)))

	var event VerificationEvent
	require.NoError(t, json.Unmarshal(receive(t, messages).Payload, &event))
	assert.Equal(t, "beta", event.SiteKey)
	assert.False(t, event.Accepted)
	assert.Equal(t, core.ReasonSiteMismatch, event.Reason)
	assert.Empty(t, event.SessionID)
}

func TestWatermillPublisher_ClosedPublisher(t *testing.T) {
	t.Parallel()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	require.NoError(t, pubSub.Close())

	err := NewWatermillPublisher(pubSub).PublishSolved(context.Background(), core.Session{ID: "vg_1"}, "")
	assert.Error(t, err)
}
