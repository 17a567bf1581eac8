// Package mqtt provides the MQTT client used by the sqlbridge command bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload size checks
//   - Tracked subscriptions restored after reconnect
//   - A retained <prefix>/status topic with a Last Will for offline detection
//   - The topic hierarchy (see Topics)
//
// Security Considerations:
//   - Anyone who can publish to <prefix>/request/+ can run SQL; restrict it
//     with broker ACLs
//   - Use TLS (cfg.Broker.TLS=true) outside a trusted network
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllRequests(), client.QoS(),
//	    func(topic string, payload []byte) error {
//	        // decode {"id","reply_to","args"} and dispatch
//	        return nil
//	    })
package mqtt
