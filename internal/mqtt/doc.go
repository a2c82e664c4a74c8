// Package mqtt publishes gateway lifecycle events to an MQTT broker.
//
// The Client wraps paho.mqtt.golang with connection state tracking, a
// retained online/offline status and a Last Will so subscribers can tell a
// crash from a clean shutdown. The Forwarder drains an events.Hub
// subscription and republishes each event under the configured prefix:
//
//	<prefix>/system/status          retained, {"status":"online"|"offline",...}
//	<prefix>/events/<event-type>    not retained, the event JSON
package mqtt
