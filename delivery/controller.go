package delivery

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/streamkit/buffer"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/source"
	"github.com/kbukum/streamkit/wire"
)

const tracerName = "github.com/kbukum/streamkit/delivery"

// SpanDeliver is the span covering one delivery.
const SpanDeliver = "delivery.deliver"

// HandlerFunc produces the response for a request.
type HandlerFunc func(ctx context.Context) (*Response, error)

// Result summarizes a finished delivery.
type Result struct {
	// ID identifies the delivery in logs and spans.
	ID string
	// State is Completed or Aborted.
	State State
	// Err is the failure that ended or redirected the delivery, if any.
	Err error
	// Status is the status code of the response that went out.
	Status int
	// Bytes and Chunks count body data accepted by the connection.
	Bytes  int64
	Chunks int
	// Committed reports whether any body byte was written.
	Committed bool
	// Substituted reports whether the original response was replaced.
	Substituted bool
	// HandlerCalled reports whether the application error handler ran.
	HandlerCalled bool
	// Duration is the wall time of the delivery.
	Duration time.Duration
}

// Controller delivers responses. One Controller serves any number of
// concurrent deliveries; each call owns its own buffer and writer.
type Controller struct {
	bufferSize  int
	lowWater    int
	idleTimeout time.Duration
	policy      Policy
	observer    Observer
	tracer      trace.Tracer
	log         *logger.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithErrorHandler registers the application error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Controller) { c.policy.Handler = h }
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithTracerProvider sets the tracer provider. The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Controller) { c.tracer = tp.Tracer(tracerName) }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l.WithComponent("delivery")
		}
	}
}

// New returns a controller for cfg. Empty config values fall back to defaults.
func New(cfg Config, opts ...Option) *Controller {
	cfg.ApplyDefaults()
	c := &Controller{
		bufferSize:  cfg.BufferBytes(),
		lowWater:    cfg.LowWaterBytes(),
		idleTimeout: cfg.IdleTimeout,
		observer:    nopObserver{},
		tracer:      otel.Tracer(tracerName),
		log:         logger.GetGlobalLogger().WithComponent("delivery"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the error policy in use.
func (c *Controller) Policy() Policy { return c.policy }

// Deliver writes resp to conn, substituting or aborting on failure.
func (c *Controller) Deliver(ctx context.Context, resp *Response, conn wire.Conn) Result {
	return c.Serve(ctx, conn, func(context.Context) (*Response, error) { return resp, nil })
}

// Serve calls fn to obtain the response and delivers it. An error or panic
// from fn is handled like a body failure before commit.
func (c *Controller) Serve(ctx context.Context, conn wire.Conn, fn HandlerFunc) Result {
	d := &delivery{
		c:     c,
		id:    uuid.NewString(),
		w:     wire.NewWriter(conn),
		state: Idle,
		start: time.Now(),
	}
	ctx, span := c.tracer.Start(ctx, SpanDeliver, trace.WithAttributes(
		attribute.String("delivery.id", d.id),
	))
	defer span.End()
	d.log = c.log.WithContext(ctx).WithFields(map[string]interface{}{logger.FieldResponseID: d.id})

	c.observer.DeliveryStarted(ctx)
	resp, err := d.invoke(ctx, fn)
	d.loop(ctx, resp, err)

	res := d.result()
	c.observer.DeliveryFinished(ctx, res.State.String(), res.Substituted, res.Bytes, res.Duration)
	span.SetAttributes(
		attribute.String("delivery.outcome", res.State.String()),
		attribute.Int64("delivery.bytes", res.Bytes),
		attribute.Int("delivery.chunks", res.Chunks),
		attribute.Int("http.status_code", res.Status),
		attribute.Bool("delivery.substituted", res.Substituted),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	if res.State == Aborted {
		span.SetStatus(codes.Error, "aborted")
	}
	d.logResult(res)
	return res
}

// delivery is the state of one Serve call.
type delivery struct {
	c     *Controller
	id    string
	w     *wire.Writer
	log   *logger.Logger
	state State
	start time.Time

	err           error
	abortReason   string
	substituted   bool
	handlerCalled bool
}

func (d *delivery) invoke(ctx context.Context, fn HandlerFunc) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Producer(errors.FromPanic(r))
		}
	}()
	resp, err = fn(ctx)
	if err != nil {
		return nil, errors.Producer(err)
	}
	if resp == nil {
		return nil, errors.Producer(fmt.Errorf("handler returned no response"))
	}
	return resp, nil
}

// loop delivers resp, then each substitute the policy asks for, until the
// delivery completes or aborts.
func (d *delivery) loop(ctx context.Context, resp *Response, err error) {
	for attempt := 0; ; {
		if err == nil {
			err = d.attempt(ctx, resp)
			if err == nil {
				d.state = Completed
				return
			}
		}

		// A bodyless status is final once its header is out.
		committed := d.w.Committed() || d.w.HeaderSent()
		if committed {
			d.state = FailedPostCommit
		} else {
			d.state = FailedPreCommit
		}
		if d.err == nil {
			d.err = err
		}

		decision := d.c.policy.Decide(ctx, err, committed, attempt)
		if decision.Action != ActionAbort {
			d.log.Warn("Substituting failed response", map[string]interface{}{
				"action":          decision.Action.String(),
				"attempt":         attempt,
				logger.FieldError: err.Error(),
			})
		}
		switch decision.Action {
		case ActionAbort:
			d.err = err
			d.abort(decision.Reason)
			return
		case ActionSubstitute:
			d.state = Substituting
			d.handlerCalled = true
			resp, err = d.callHandler(ctx, err)
		case ActionDefault:
			d.state = Substituting
			resp, err = DefaultResponse(err), nil
		}
		d.substituted = true
		attempt++
	}
}

func (d *delivery) callHandler(ctx context.Context, failure error) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, errors.Handler(errors.FromPanic(r))
		}
	}()
	resp, err = d.c.policy.Handler(ctx, failure)
	if err != nil {
		return nil, errors.Handler(err)
	}
	if resp == nil {
		return DefaultResponse(failure), nil
	}
	return resp, nil
}

// attempt delivers one response. It returns nil once the response is finalized.
func (d *delivery) attempt(ctx context.Context, resp *Response) (err error) {
	body := resp.Body
	if body == nil {
		body = source.Bytes(nil)
	}
	if err = body.Claim(); err != nil {
		return errors.Producer(err)
	}
	d.state = Activated
	if err = d.w.Prepare(resp.Status, resp.Header, resp.contentLength()); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	buf := buffer.New(d.c.bufferSize)
	defer func() {
		ended := buf.State() != buffer.Open
		buf.Abandon()
		cancel()
		if !ended {
			reason := err
			if reason == nil {
				reason = context.Canceled
			}
			cancelSource(body, reason)
		}
	}()

	newStream(runCtx, buf).activate(body, d.c.lowWater)
	return d.drain(ctx, buf)
}

// drain moves items from buf to the writer until a terminal item or failure.
func (d *delivery) drain(ctx context.Context, buf *buffer.Buffer) error {
	for {
		item, err := d.next(ctx, buf)
		if err != nil {
			return err
		}
		switch item.Kind {
		case buffer.ItemChunk:
			if err := d.w.Write(item.Chunk); err != nil {
				return err
			}
			d.c.observer.ChunkWritten(ctx, len(item.Chunk))
		case buffer.ItemCompleted:
			return d.w.Finalize()
		case buffer.ItemFailed:
			return errors.Producer(item.Err)
		}
	}
}

func (d *delivery) next(ctx context.Context, buf *buffer.Buffer) (buffer.Item, error) {
	waitCtx := ctx
	if d.c.idleTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.c.idleTimeout)
		defer cancel()
	}
	item, err := buf.Next(waitCtx)
	switch {
	case err == nil:
		return item, nil
	case ctx.Err() != nil:
		return item, errors.ClientGone(ctx.Err())
	case stderrors.Is(err, context.DeadlineExceeded):
		return item, errors.Producer(errors.Timeout("delivery.next"))
	default:
		return item, errors.Internal(err)
	}
}

func (d *delivery) abort(reason string) {
	d.abortReason = reason
	if err := d.w.Abort(); err != nil && !stderrors.Is(err, wire.ErrAbortUnsupported) {
		d.log.Debug("Abort failed", map[string]interface{}{logger.FieldError: err.Error()})
	}
	d.state = Aborted
}

func (d *delivery) result() Result {
	return Result{
		ID:            d.id,
		State:         d.state,
		Err:           d.err,
		Status:        d.w.Status(),
		Bytes:         d.w.BytesWritten(),
		Chunks:        d.w.Chunks(),
		Committed:     d.w.Committed(),
		Substituted:   d.substituted,
		HandlerCalled: d.handlerCalled,
		Duration:      time.Since(d.start),
	}
}

func (d *delivery) logResult(res Result) {
	fields := map[string]interface{}{
		logger.FieldOutcome:     res.State.String(),
		logger.FieldStatus:      res.Status,
		logger.FieldBytes:       res.Bytes,
		logger.FieldChunks:      res.Chunks,
		logger.FieldCommitted:   res.Committed,
		logger.FieldSubstituted: res.Substituted,
	}
	fields = logger.MergeWithDuration(fields, res.Duration)
	switch {
	case res.State == Completed:
		d.log.Debug("Delivery completed", fields)
	case errors.IsClientGone(res.Err):
		d.log.Debug("Delivery aborted by client", logger.MergeWithError(fields, res.Err))
	default:
		fields["reason"] = d.abortReason
		d.log.Error("Delivery aborted", logger.MergeWithError(fields, res.Err))
	}
}

// cancelSource tells a push or pull producer that nobody is reading anymore.
func cancelSource(src source.Source, reason error) {
	switch s := src.(type) {
	case *source.Push:
		if s.Cancel != nil {
			s.Cancel(reason)
		}
	case *source.Pull:
		if s.Cancel != nil {
			s.Cancel(reason)
		}
	}
}
