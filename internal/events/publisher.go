package events

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/vk/pakego/internal/ctxlog"
	"github.com/vk/pakego/internal/scheduler"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// emitter is the part of a socket.io client the publisher needs.
type emitter interface {
	Emit(event string, args ...any)
}

// Publisher is a scheduler.Observer that forwards progress to a socket.io
// namespace. Emitting is fire and forget; a broken connection never fails
// a build.
type Publisher struct {
	io     *socket.Socket
	emit   func(event string, payload map[string]any)
	logger *slog.Logger
}

var _ scheduler.Observer = (*Publisher)(nil)

// Dial connects to the socket.io server at rawURL. The URL path selects the
// namespace, e.g. http://localhost:3000/builds.
func Dial(ctx context.Context, rawURL string, timeout time.Duration) (*Publisher, error) {
	logger := ctxlog.FromContext(ctx).With("component", "events", "url", rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse events URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("events URL %q must be absolute", rawURL)
	}

	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	namespace := parsedURL.Path
	if namespace == "" {
		namespace = "/"
	}
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Events socket connected.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})

	logger.Debug("Connecting events socket.")
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	p := &Publisher{io: io, logger: logger}
	p.emit = func(event string, payload map[string]any) {
		logger.Debug("Emitting event.", "event", event)
		io.Emit(event, payload)
	}
	return p, nil
}

// newPublisher builds a Publisher over any emitter.
func newPublisher(e emitter, logger *slog.Logger) *Publisher {
	return &Publisher{
		logger: logger,
		emit: func(event string, payload map[string]any) {
			logger.Debug("Emitting event.", "event", event)
			e.Emit(event, payload)
		},
	}
}

// Close disconnects the socket.
func (p *Publisher) Close() {
	if p.io != nil {
		p.logger.Debug("Closing events socket.", "sid", p.io.Id())
		p.io.Disconnect()
	}
}

func (p *Publisher) BuildStarted(buildID string, tasks []string) {
	p.emit(BuildStart, buildStartPayload(buildID, tasks))
}

func (p *Publisher) TaskStarted(buildID, task string) {
	p.emit(TaskStart, taskStartPayload(buildID, task))
}

func (p *Publisher) TaskFinished(buildID string, r scheduler.TaskResult) {
	p.emit(TaskFinish, taskFinishPayload(buildID, r))
}

func (p *Publisher) BuildFinished(r *scheduler.BuildResult) {
	p.emit(BuildFinish, buildFinishPayload(r))
}
