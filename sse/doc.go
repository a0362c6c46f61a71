// Package sse delivers Server-Sent Events through the delivery pipeline.
//
// A Hub tracks connected clients and routes published events to them by
// glob pattern over client IDs. Each client is served as a push source: the
// hub writes a connected event, then forwards published events and periodic
// keep-alive comments until the client is unregistered or goes away.
//
//	hub := sse.NewHub(sse.WithMetrics(prom))
//	go hub.Run()
//
//	ctrl.Serve(ctx, conn, func(ctx context.Context) (*delivery.Response, error) {
//	    return hub.Response(sse.NewClient("feed:"+id), 30*time.Second), nil
//	})
//
//	hub.Publish(ctx, "feed:*", sse.Event{Type: sse.EventTypeMessage, Data: payload})
package sse
