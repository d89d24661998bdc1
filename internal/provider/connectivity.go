package provider

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// Connectivity answers whether cloud providers are reachable right now.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// DialChecker probes a well-known address with a short TCP dial.
type DialChecker struct {
	Addr    string
	Timeout time.Duration
}

func NewDialChecker(addr string) *DialChecker {
	if addr == "" {
		addr = "1.1.1.1:443"
	}
	return &DialChecker{Addr: addr, Timeout: 2 * time.Second}
}

func (d *DialChecker) Online(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Watcher polls a Connectivity checker and emits one signal on each
// offline-to-online transition, which triggers a queue drain.
type Watcher struct {
	check    Connectivity
	interval time.Duration
	logger   *slog.Logger
	signal   chan struct{}
}

func NewWatcher(check Connectivity, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Watcher{
		check:    check,
		interval: interval,
		logger:   logger,
		signal:   make(chan struct{}, 1),
	}
}

// Restored is signalled once per connectivity restoration.
func (w *Watcher) Restored() <-chan struct{} {
	return w.signal
}

// Run blocks until ctx is done, probing on the configured interval.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	online := w.check.Online(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := w.check.Online(ctx)
			if now && !online {
				w.logger.Info("connectivity.restored")
				select {
				case w.signal <- struct{}{}:
				default:
				}
			}
			online = now
		}
	}
}
