// Package security builds client TLS settings for outbound connections such
// as the Redis relay.
//
//	tlsCfg, err := cfg.TLS.Build() // nil when TLS is disabled
package security
