package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DefaultSubjectPrefix is the first token of every published subject.
const DefaultSubjectPrefix = "visiond"

// NATSConfig configures a NATS-backed publisher.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Name          string
	Logger        *zerolog.Logger
}

// NATS publishes events as JSON to "<prefix>.<scope>.<name>" subjects.
// Publish is fire-and-forget: the client buffers while disconnected and
// failures are logged, never returned.
type NATS struct {
	nc     *nats.Conn
	prefix string
	log    zerolog.Logger
}

// ConnectNATS dials the server at cfg.URL.
func ConnectNATS(cfg NATSConfig) (*NATS, error) {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	name := cfg.Name
	if name == "" {
		name = "visiond"
	}
	nc, err := nats.Connect(
		cfg.URL,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Debug().Msg("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.URL, err)
	}
	log.Info().Str("url", cfg.URL).Str("prefix", prefix).Msg("event publisher connected")
	return &NATS{nc: nc, prefix: prefix, log: log}, nil
}

// Subject returns the subject an event is published on.
func (p *NATS) Subject(e Event) string {
	return Subject(p.prefix, e)
}

func (p *NATS) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		p.log.Error().Err(err).Str("event", e.Name).Msg("event marshal failed")
		return
	}
	if err := p.nc.Publish(p.Subject(e), data); err != nil {
		p.log.Warn().Err(err).Str("event", e.Name).Msg("event publish failed")
	}
}

// Shutdown flushes pending messages and closes the connection.
func (p *NATS) Shutdown() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

// Subject builds "<prefix>.<scope>.<name>", omitting an empty scope.
func Subject(prefix string, e Event) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if e.Scope == "" {
		return prefix + "." + e.Name
	}
	return prefix + "." + e.Scope + "." + e.Name
}
