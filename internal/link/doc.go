// Package link maintains a throttled command channel to a single device over a
// persistent TCP connection.
//
// # Components
//
//   - Manager owns the connection lifecycle (Disconnected → Connecting →
//     Connected → Disconnected), forwards inbound chunks to one Listener and
//     drives the dispatch queue.
//   - Dispatcher is the only writer to the socket. It drains a FIFO queue one
//     command at a time with a minimum spacing (30ms by default) so slow
//     embedded or serial-bridge devices are never overrun.
//   - Framer applies the device's command framing. Framing is the caller's
//     job; the dispatcher never inspects payloads.
//
// # Usage Example
//
//	mgr := link.NewManager(link.Config{Logger: logger})
//	mgr.SetListener(func(data []byte) {
//	    fmt.Printf("%q\n", data)
//	})
//
//	if err := mgr.Connect(ctx, "192.168.1.40", 60128); err != nil {
//	    fmt.Println(link.Hint(err))
//	    return err
//	}
//	defer mgr.Disconnect()
//
//	framer := link.DefaultFramer()
//	mgr.Send(framer.Frame("PWR01"))
//	mgr.Send(framer.Frame("MVL40"))
//	_ = mgr.Flush(ctx)
//
// # Delivery
//
// Send is an admission check: it returns false when the connection is not
// sendable and true once the command is queued. A command whose write fails is
// logged and dropped; it is never retried. Commands still queued when the
// connection closes, from either end, are discarded.
//
// # Thread Safety
//
// Manager and Dispatcher are safe for concurrent use. The listener runs on the
// connection's reader goroutine, so chunks arrive in order.
package link
