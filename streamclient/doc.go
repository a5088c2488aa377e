// Package streamclient maintains a reconnecting WebSocket subscription for
// live console and monitoring views.
//
// State machine:
//
//	Connecting -> Open            handshake succeeded; reconnect counter reset
//	Open -> Reconnecting          close code other than 1000, or transport error
//	Connecting -> Reconnecting    handshake failed
//	Reconnecting -> Connecting    fixed delay elapsed (3s by default)
//	Reconnecting -> Exhausted     attempt budget spent (5 by default); terminal
//	any -> Closed                 Close, context cancellation, or a 1000 close
//	                              from the server; terminal
//
// Inbound frames must be JSON; anything else is logged and dropped without
// affecting the connection. While paused, events are held in a bounded ring
// (10000 by default). When the ring is full the oldest held event is dropped
// and counted, so a consumer that stays paused indefinitely loses the oldest
// history rather than exhausting memory.
//
//	conn, err := streamclient.Connect(ctx, "wss://api.example.com/ws/logs",
//	    streamclient.Handlers{
//	        OnMessage: func(ev streamclient.Event) { render(ev) },
//	        OnStateChange: func(_, to streamclient.State) { setBadge(to) },
//	    },
//	    streamclient.WithTokenStore(store),
//	)
//	defer conn.Close()
package streamclient
