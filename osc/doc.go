/*
Package osc implements a small discovery protocol on top of Open Sound Control
framing over UDP.

A Server binds two UDP endpoints. The handshake endpoint answers roster
queries and reports plain OSC messages. The data endpoint receives
application OSC messages and hands them to a Dispatcher.

Two wire formats share the handshake endpoint, told apart by their first
byte, the same way OSC tells messages ('/') from bundles ('#').

OSC messages:

	address 0x00 [padding to a multiple of 4]
	',' type_tag 0x00 0x00
	payload

Handshake operations (HandshakeFormatVersion 1):

	"#hsop" 0x00 0x00 0x00
	',' opcode 0x00 0x00
	payload

An OpQuery has an empty payload. The server answers with an OpStatus whose
payload is a Status:

	0x00
	id 0x00 friendly_name 0x00 version 0x00   one per app
	[0x00 additional_data]

Every header field is aligned to 4 bytes, so fields can be added later
without moving the payload, and every read from the network is bounds
checked. A datagram that does not decode is logged and dropped; it never
stops the server.

# Usage

Server:

	d := osc.NewDispatcher()
	d.AddMsgHandler("/avatar/change", osc.HandlerFunc(func(msg *osc.Message) {
		log.Println(msg)
	}))

	srv, err := osc.Start(osc.AppInfo{ID: "test", FriendlyName: "Test Server", Version: "0.0.1"},
		"127.0.0.1", 9000, 25565, osc.WithDispatcher(d))
	if err != nil {
		log.Fatal(err)
	}
	defer srv.Close()

Client:

	status, err := osc.NewClient().Discover(ctx, "127.0.0.1:25565")
*/
package osc
