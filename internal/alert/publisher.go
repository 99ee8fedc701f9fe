// Package alert emits structured advisory notifications over NATS. Alerts
// are best-effort: the pipeline must run unattended, so a publish failure is
// logged by the caller and never blocks or aborts extraction.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for exporter advisories.
const (
	SubjectReadiness = "attendance.export.readiness"
	SubjectRunStatus = "attendance.export.run"
)

// Notifier is the advisory transport. The NATS publisher implements it;
// tests substitute fakes.
type Notifier interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// ReadinessAlert describes one degraded upstream component.
type ReadinessAlert struct {
	Component string    `json:"component"` // "role" or "unit"
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Federated bool      `json:"federated,omitempty"`
	Time      time.Time `json:"time"`
}

// RunStatus summarizes a finished extraction run.
type RunStatus struct {
	Succeeded bool      `json:"succeeded"`
	Loaded    int64     `json:"loaded"`
	Dropped   int64     `json:"dropped"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}

// Publisher publishes advisories to NATS.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials the NATS server. An empty URL returns (nil, nil): a nil
// *Publisher is a valid no-op Notifier.
func Connect(url, name string) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// Publish marshals the payload to JSON and publishes it. A nil Publisher
// silently discards.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	if p == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes and closes the connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	_ = p.conn.Flush()
	p.conn.Close()
}
