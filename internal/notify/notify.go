package notify

import (
	"context"
	"sync"

	"slotbook/internal/domain"

	"github.com/rs/zerolog"
)

// LogNotifier writes visitor notices to the log.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, message string, severity domain.Severity) {
	ev := n.logger.Info()
	if severity == domain.SeverityError {
		ev = n.logger.Warn()
	}
	ev.Str("severity", string(severity)).Msg(message)
}

// Notice is one message shown to the visitor.
type Notice struct {
	Message  string          `json:"message"`
	Severity domain.Severity `json:"severity"`
}

// Collector gathers the notices produced while serving one request.
type Collector struct {
	mu      sync.Mutex
	notices []Notice
}

func (c *Collector) Add(message string, severity domain.Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, Notice{Message: message, Severity: severity})
}

func (c *Collector) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

type collectorKey struct{}

func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

func CollectorFrom(ctx context.Context) (*Collector, bool) {
	c, ok := ctx.Value(collectorKey{}).(*Collector)
	return c, ok && c != nil
}

// ContextNotifier appends notices to the Collector carried by ctx, if any.
type ContextNotifier struct{}

func (ContextNotifier) Notify(ctx context.Context, message string, severity domain.Severity) {
	if c, ok := CollectorFrom(ctx); ok {
		c.Add(message, severity)
	}
}

type multi []domain.Notifier

// Multi fans a notice out to every non-nil notifier in order.
func Multi(notifiers ...domain.Notifier) domain.Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, message string, severity domain.Severity) {
	for _, n := range m {
		n.Notify(ctx, message, severity)
	}
}
