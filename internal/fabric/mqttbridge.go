package fabric

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTBridgeConfig configures the optional outbound bridge that mirrors
// fabric publishes onto an external MQTT broker without in-process
// consumers ever needing to know it exists (§4.1: "reused by external MQTT
// bridging without changing in-process consumers").
type MQTTBridgeConfig struct {
	BrokerHost  string
	BrokerPort  int
	ClientID    string
	TopicPrefix string
}

// MQTTBridge subscribes to a pattern on the in-process Fabric and republishes
// every matching envelope to an external broker. It never feeds external
// messages back onto the fabric's publish path — the bridge is strictly
// outbound, keeping the fabric authoritative for in-process ordering.
type MQTTBridge struct {
	client paho.Client
	prefix string
	sub    *Subscription
	logger *zap.Logger
	queueSize int
	queued  int
}

// NewMQTTBridge builds a client for the configured broker and wires a
// Last-Will "offline" status the way the original gateway did for its own
// liveness. It does not connect; Connect dials the broker.
func NewMQTTBridge(cfg MQTTBridgeConfig, logger *zap.Logger) (*MQTTBridge, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.BrokerHost, cfg.BrokerPort))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(cfg.TopicPrefix+"bridge/status", `{"status":"offline"}`, 1, true)

	bridge := &MQTTBridge{prefix: cfg.TopicPrefix, logger: logger, queueSize: 1000}
	opts.SetOnConnectHandler(func(c paho.Client) {
		logger.Info("mqtt bridge connected")
		c.Publish(cfg.TopicPrefix+"bridge/status", 1, true, `{"status":"online"}`)
	})
	opts.SetConnectionLostHandler(func(c paho.Client, err error) {
		logger.Warn("mqtt bridge connection lost", zap.Error(err))
	})

	bridge.client = paho.NewClient(opts)
	return bridge, nil
}

// Connect dials the broker, blocking until the connection attempt resolves.
func (b *MQTTBridge) Connect() error {
	token := b.client.Connect()
	token.Wait()
	return token.Error()
}

// Attach subscribes pattern on f and republishes every delivered envelope's
// payload to the broker under prefix+topic, at the envelope's own QoS.
// While disconnected, publishes queue up to queueSize messages and are
// dropped past that bound — the publish-side back-pressure policy of §4.1.
func (b *MQTTBridge) Attach(f *Fabric, pattern string) {
	b.sub = f.SubscribeBuffered(pattern, QoS1, b.queueSize)
	go func() {
		for env := range b.sub.Inbox() {
			if !b.client.IsConnected() {
				b.queued++
				if b.queued > b.queueSize {
					b.logger.Warn("mqtt bridge publish dropped, disconnected and queue full",
						zap.String("topic", env.Topic))
					continue
				}
			} else {
				b.queued = 0
			}
			token := b.client.Publish(b.prefix+env.Topic, byte(env.QoS), env.Retain, env.Payload)
			token.Wait()
			if err := token.Error(); err != nil {
				b.logger.Warn("mqtt bridge publish failed", zap.String("topic", env.Topic), zap.Error(err))
			}
		}
	}()
}

// Close unsubscribes and disconnects from the broker.
func (b *MQTTBridge) Close() {
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
	b.client.Publish(b.prefix+"bridge/status", 1, true, `{"status":"offline"}`)
	b.client.Disconnect(250)
}

// IsConnected reports whether the bridge currently has a broker connection.
func (b *MQTTBridge) IsConnected() bool {
	return b.client.IsConnected()
}
