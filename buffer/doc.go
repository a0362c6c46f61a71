// Package buffer implements the bounded queue between a body producer and
// the wire writer of a single response.
//
// The producer side calls Push, Complete and Fail. The writer side calls
// Next, which yields chunks in insertion order and then exactly one
// terminal item. Capacity is measured in bytes; Push blocks while the
// buffer is full, which is how backpressure reaches the producer.
package buffer
