// Package mqtt provides MQTT client connectivity for Station PM.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Station PM publishes import and maintenance events to MQTT so external
// integrations (CMMS connectors, notification services, reporting jobs)
// can react without polling the REST API.
//
//	Station PM → MQTT Broker → Integrations
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Publish an import event
//	topic := mqtt.Topics{}.ImportCommitted("platform", controllerID)
//	client.Publish(topic, payload, 1, false)
package mqtt
