// Package util provides small helpers shared across streamkit packages.
package util
