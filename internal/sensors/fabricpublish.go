package sensors

import (
	"github.com/lawnberry/safetycore/internal/fabric"
)

// topicForKind maps a Reading's variant to its fabric topic. Every adapter
// shares one PublishFunc built by FabricPublisher rather than knowing fabric
// topic strings itself.
func topicForKind(k Kind) (string, bool) {
	switch k {
	case KindGNSS:
		return fabric.TopicSensorGNSS, true
	case KindIMU:
		return fabric.TopicSensorIMU, true
	case KindToF:
		return fabric.TopicSensorToF, true
	case KindEnvironment:
		return fabric.TopicSensorEnvironment, true
	case KindPower:
		return fabric.TopicSensorPower, true
	case KindEncoder:
		return fabric.TopicSensorEncoder, true
	case KindVision:
		return fabric.TopicSensorVision, true
	default:
		return "", false
	}
}

// FabricPublisher returns a PublishFunc that encodes a Reading as JSON and
// publishes it on its kind's topic. A reading that fails to encode is
// dropped silently; publish failures are counted by the fabric itself. An
// adapter's PublishFunc is fire-and-forget by contract, so no error is
// returned here.
func FabricPublisher(f *fabric.Fabric) PublishFunc {
	return func(r Reading) {
		topic, ok := topicForKind(r.Kind)
		if !ok {
			return
		}
		payload, err := fabric.EncodeJSON(r)
		if err != nil {
			return
		}
		f.Publish(topic, payload, fabric.QoS0, false, false)
	}
}
