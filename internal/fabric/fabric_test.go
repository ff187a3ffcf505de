package fabric

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFabric() *Fabric {
	return New(NewPolicyTable(), zap.NewNop(), nil)
}

func TestMatchTopicWildcards(t *testing.T) {
	assert.True(t, MatchTopic("sensors.+.reading", "sensors.gnss.reading"))
	assert.False(t, MatchTopic("sensors.+.reading", "sensors.gnss.extra.reading"))
	assert.True(t, MatchTopic("sensors.#", "sensors.gnss.extra.reading"))
	assert.True(t, MatchTopic("sensors.#", "sensors.gnss"))
	assert.False(t, MatchTopic("sensors.gnss", "sensors.imu"))
}

func TestPublishSubscribeDeliversEnvelope(t *testing.T) {
	f := newTestFabric()
	sub := f.Subscribe("sensors.gnss.reading", QoS0)
	defer sub.Unsubscribe()

	result, err := f.Publish("sensors.gnss.reading", []byte(`{"lat":1}`), QoS0, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)

	select {
	case env := <-sub.Inbox():
		assert.Equal(t, "sensors.gnss.reading", env.Topic)
	case <-time.After(time.Second):
		t.Fatal("expected envelope delivery")
	}
}

func TestRetainedMessageDeliveredOnSubscribe(t *testing.T) {
	f := newTestFabric()
	_, err := f.Publish("safety.status", []byte(`{}`), QoS1, true, false)
	require.NoError(t, err)

	sub := f.Subscribe("safety.status", QoS1)
	defer sub.Unsubscribe()

	select {
	case env := <-sub.Inbox():
		assert.Equal(t, "safety.status", env.Topic)
	case <-time.After(time.Second):
		t.Fatal("expected retained envelope on subscribe")
	}
}

func TestRateLimitDropsExcessPublishes(t *testing.T) {
	policies := NewPolicyTable(TopicPolicy{Pattern: "sensors.noisy", RateLimitPerMin: 1})
	f := New(policies, zap.NewNop(), nil)

	_, err := f.Publish("sensors.noisy", []byte("1"), QoS0, false, false)
	require.NoError(t, err)

	_, err = f.Publish("sensors.noisy", []byte("2"), QoS0, false, false)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestCriticalPublishBypassesRateLimit(t *testing.T) {
	policies := NewPolicyTable(TopicPolicy{Pattern: "safety.emergency_stop", RateLimitPerMin: 1})
	f := New(policies, zap.NewNop(), nil)

	_, err := f.Publish("safety.emergency_stop", []byte("1"), QoS2, false, true)
	require.NoError(t, err)
	_, err = f.Publish("safety.emergency_stop", []byte("2"), QoS2, false, true)
	require.NoError(t, err)
}

func TestBackpressureDropsOldestNonCritical(t *testing.T) {
	f := newTestFabric()
	sub := f.SubscribeBuffered("sensors.x", QoS0, 1)
	defer sub.Unsubscribe()

	_, err := f.Publish("sensors.x", []byte("first"), QoS0, false, false)
	require.NoError(t, err)
	_, err = f.Publish("sensors.x", []byte("second"), QoS0, false, false)
	require.NoError(t, err)

	env := <-sub.Inbox()
	assert.Equal(t, "second", string(env.Payload))
}

func TestInvalidPayloadRejectedByValidator(t *testing.T) {
	policies := NewPolicyTable(TopicPolicy{
		Pattern: "sensors.imu.reading",
		Validate: func(payload []byte) error {
			if len(payload) == 0 {
				return assert.AnError
			}
			return nil
		},
	})
	f := New(policies, zap.NewNop(), nil)
	_, err := f.Publish("sensors.imu.reading", nil, QoS0, false, false)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestSanitizeFloatsReplacesNaNAndInf(t *testing.T) {
	type payload struct {
		Value float64 `json:"value"`
	}
	out, err := EncodeJSON(payload{Value: 1.5})
	require.NoError(t, err)
	assert.Contains(t, string(out), "1.5")

	nan := math.NaN()
	out, err = EncodeJSON(payload{Value: nan})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "NaN")
	assert.Contains(t, string(out), "null")

	inf := math.Inf(1)
	out, err = EncodeJSON(payload{Value: inf})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "Inf")
}
