package mqtt

import "fmt"

// MaxPayloadSize caps a single message (1MB), matching common broker limits.
// Query results larger than this must be paged by the caller.
const MaxPayloadSize = 1 << 20

// Publish sends a message to topic.
//
// QoS 0 is fire and forget, 1 at least once, 2 exactly once. Retained
// messages are kept by the broker for new subscribers; only the status topic
// uses them.
//
// Example:
//
//	err := client.Publish(client.Topics().Response(id), reply, 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublish(topic, payload, qos); err != nil {
		return err
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// validatePublish checks the arguments of a publish before touching the network.
func validatePublish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if err := CheckPayloadSize(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// CheckPayloadSize returns ErrPayloadTooLarge when payload exceeds
// MaxPayloadSize.
func CheckPayloadSize(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	return nil
}
