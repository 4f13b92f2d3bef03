// Package bridge relays a device connection to WebSocket clients, so a
// browser or another local program can drive the device while lanlink holds
// the single TCP connection.
//
// Clients connect to /ws and exchange JSON messages:
//
//	→ {"type":"send","id":"1","command":"PWR01"}   framed as !7PWR01\r and queued
//	← {"type":"ack","id":"1","accepted":true}
//	→ {"type":"raw","id":"2","data":"!7MVLUP\r"}   queued as-is
//	→ {"type":"status"}
//	← {"type":"status","state":"connected","remote":"10.0.0.5:60128","pending":0}
//	← {"type":"data","data":"!1PWR01\r","hex":"213150575230310d"}
//	← {"type":"closed"}
//
// Every inbound chunk is broadcast to all clients in arrival order. "accepted"
// means the command entered the dispatch queue, not that it was delivered.
// Prometheus metrics are served at /metrics when a Gatherer is configured.
package bridge
