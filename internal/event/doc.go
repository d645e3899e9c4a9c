/*
Package event is the event relay between the agent core and its listeners.

Two channels share one bus:

Session lifecycle:
  - session.list-updated: the session list changed (create, rename, pin, delete, new message)
  - session.activated: a window was bound to a session
  - session.deactivated: a window binding was removed
  - session.status-changed: a session's runtime status changed

Stream lifecycle:
  - stream.response: a renderer flush of an in-flight generation
  - stream.end: the generation finished and its final content is stored
  - stream.error: the generation failed or was cancelled

Every stream event carries the session's correlation id.

# Delivery

In-process subscribers registered with Subscribe or SubscribeAll are called on the
publishing goroutine in publish order, so a subscriber must not block. A JSON copy of
every event is then published to RelayTopic on a watermill gochannel; the server's
SSE and websocket handlers read it through SubscribeRelay:

	msgs, err := bus.SubscribeRelay(ctx)
	for msg := range msgs {
		msg.Ack()
		typ, data, _ := event.DecodeRelay(msg.Payload)
		...
	}

Publish never reports failures to its caller.
*/
package event
