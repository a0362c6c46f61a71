// Command streamserve is a demo HTTP server for the streamkit delivery
// pipeline. It serves eager, push and pull bodies, failure demonstrations
// a Server-Sent Events hub and, when storage is enabled, objects from a
// local directory or an S3 bucket.
//
// Usage:
//
//	streamserve [-config path/to/config.yml] [-version]
//
// Every config key can be overridden from the environment, e.g.
// SERVER_PORT=9090 or DELIVERY_BUFFER_SIZE=128KB.
package main
