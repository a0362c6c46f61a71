package logger

import "time"

// Field names shared by every package so log queries line up.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldResponseID  = "response_id"
	FieldOperation   = "operation"
	FieldStatus      = "status"
	FieldState       = "state"
	FieldOutcome     = "outcome"
	FieldBytes       = "bytes"
	FieldChunks      = "chunks"
	FieldCommitted   = "committed"
	FieldSubstituted = "substituted"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
)

// Fields turns alternating keys and values into a field map. Non-string
// keys and a trailing key without a value are dropped.
//
//	logger.Info("done", logger.Fields("bytes", 512, "chunks", 3))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 1; i < len(kvs); i += 2 {
		if key, ok := kvs[i-1].(string); ok {
			m[key] = kvs[i]
		}
	}
	return m
}

// MergeWithError sets the error field on fields, allocating it if nil.
func MergeWithError(fields map[string]interface{}, err error) map[string]interface{} {
	return merge(fields, FieldError, err.Error())
}

// MergeWithDuration sets duration_ms on fields, allocating it if nil.
func MergeWithDuration(fields map[string]interface{}, d time.Duration) map[string]interface{} {
	return merge(fields, FieldDuration, d.Milliseconds())
}

func merge(fields map[string]interface{}, key string, v interface{}) map[string]interface{} {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields[key] = v
	return fields
}
