// Package redis connects SSE hubs of several server instances through Redis
// pub/sub.
//
// Client wraps go-redis with the logger and config conventions of this
// module. Relay subscribes to one channel and replays every message into the
// local hub, and its Publish sends to that channel, so an event published on
// any instance reaches clients connected to all of them:
//
//	client := redis.NewComponent(cfg.Redis, log)
//	relay := redis.NewRelay(client, hub, cfg.Redis.Channel, log)
//	registry.Register(client)
//	registry.Register(relay)
//	relay.Publish(ctx, "user:*", sse.Event{Type: "notice", Data: data})
package redis
