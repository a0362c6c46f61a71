// Package resilience bounds how many response streams a process holds open.
//
// A streaming response pins a goroutine, a connection and a delivery buffer
// until the producer finishes. Bulkhead caps that work so a burst of slow
// clients cannot exhaust the process:
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{
//	    Name:          "streams",
//	    MaxConcurrent: 512,
//	    MaxWait:       250 * time.Millisecond,
//	})
//
//	release, err := bh.Acquire(ctx)
//	if err != nil {
//	    return err // *errors.AppError with SERVICE_UNAVAILABLE
//	}
//	defer release()
package resilience
