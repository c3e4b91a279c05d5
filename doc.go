/*
Package main is the application package for the Findy Courier service, a
standalone DIDComm message transport and dispatch runtime. The courier
receives agent wire messages over HTTP and WebSocket, unpacks and routes
them to registered protocol handlers, and delivers outbound messages with
bounded retry, return-route reply matching over open connections, and a
store-and-forward mailbox for peers that are offline.

You can use the courier roughly for three purposes:

1. As a DIDComm relay or mediator front that accepts encrypted envelopes,
serves return-route replies directly over the inbound connection, and parks
undeliverable mail for later pickup.

2. As a dispatch runtime for your own Aries compatible protocol handlers:
register a handler per message type and the courier takes care of parsing,
connection correlation, problem reports and reply delivery.

3. As a CLI tool for running and configuring the service. All configuration
is available as flags, environment variables and a config file.
*/
package main
