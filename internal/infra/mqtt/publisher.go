// Package mqtt publishes proximity warnings and periodic summaries to an
// MQTT broker. The publisher is a snapshot presenter: it only emits when the
// overall warning changes or a new summary appears.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/roadside-lab/rsu/internal/domain"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Config is the publisher's broker configuration.
type Config struct {
	Broker   string // host:port
	ClientID string
	Topic    string // prefix; messages go to <topic>/warning and <topic>/summary
	QoS      byte
}

// Client is the part of the paho client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Message is one pending publication.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Stats contains publisher statistics.
type Stats struct {
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// Publisher turns snapshots into MQTT messages.
type Publisher struct {
	cfg    Config
	client Client
	conn   paho.Client // set by Connect, nil in tests

	mu          sync.Mutex
	session     string
	overall     *domain.WarningLevel
	summaryPkts uint64
	published   map[string]uint64
	errors      uint64
}

// NewPublisher wraps an already connected client.
func NewPublisher(cfg Config, client Client) *Publisher {
	return &Publisher{cfg: cfg, client: client, published: make(map[string]uint64)}
}

// Connect dials the broker with auto-reconnect and returns a publisher.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(paho.Client) {
		log.Printf("[mqtt] connected to %s as %s", cfg.Broker, cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Printf("[mqtt] connection lost, reconnecting: %v", err)
	}

	client := paho.NewClient(opts)
	if err := awaitConnect(ctx, client, client.Connect(), cfg.Broker, connectTimeout); err != nil {
		return nil, err
	}

	p := NewPublisher(cfg, client)
	p.conn = client
	return p, nil
}

// disconnecter is the part of the paho client used to abandon a connect.
type disconnecter interface {
	Disconnect(quiesce uint)
}

// awaitConnect waits for the connect token. With connect retry enabled the
// client keeps dialing in the background, so every failure path disconnects.
func awaitConnect(ctx context.Context, c disconnecter, token paho.Token, broker string, timeout time.Duration) error {
	var err error
	select {
	case <-token.Done():
		if err = token.Error(); err != nil {
			err = fmt.Errorf("mqtt connect %s: %w", broker, err)
		}
	case <-time.After(timeout):
		err = fmt.Errorf("mqtt connect %s: timeout", broker)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		c.Disconnect(0)
	}
	return err
}

// Present publishes whatever changed since the previous snapshot. Delivery
// is asynchronous; failures are counted and logged.
func (p *Publisher) Present(snap domain.Snapshot) {
	for _, m := range p.Messages(snap) {
		token := p.client.Publish(m.Topic, p.cfg.QoS, m.Retained, m.Payload)
		go p.await(m.Topic, token)
	}
}

func (p *Publisher) await(topic string, token paho.Token) {
	var err error
	if !token.WaitTimeout(publishTimeout) {
		err = errors.New("publish timeout")
	} else {
		err = token.Error()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.errors++
		log.Printf("[mqtt] publish %s failed: %v", topic, err)
		return
	}
	p.published[topic]++
}

// Messages returns the publications a snapshot calls for and records it as
// seen. A new session id resets the change tracking.
func (p *Publisher) Messages(snap domain.Snapshot) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Status.SessionID != p.session {
		p.session = snap.Status.SessionID
		p.overall = nil
		p.summaryPkts = 0
	}

	var out []Message
	overall := snap.Aggregate.Overall
	if p.overall == nil || *p.overall != overall {
		prev := domain.WarningUnknown
		if p.overall != nil {
			prev = *p.overall
		}
		if payload, err := json.Marshal(newWarningEvent(snap, prev)); err == nil {
			out = append(out, Message{Topic: p.cfg.Topic + "/warning", Payload: payload, Retained: true})
		}
		p.overall = &overall
	}

	if s := snap.Aggregate.Summary; s != nil && s.TotalReceived != p.summaryPkts {
		if payload, err := json.Marshal(newSummaryEvent(snap, *s)); err == nil {
			out = append(out, Message{Topic: p.cfg.Topic + "/summary", Payload: payload})
		}
		p.summaryPkts = s.TotalReceived
	}
	return out
}

// Stats returns publisher statistics.
func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{Published: published, Errors: p.errors}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.conn != nil && p.conn.IsConnected() {
		p.conn.Disconnect(250)
		log.Printf("[mqtt] disconnected")
	}
}

// ─── Payloads ───────────────────────────────────────────────────────────────

type peerWarning struct {
	Label     string              `json:"label"`
	PeerID    string              `json:"peer_id"`
	Warning   domain.WarningLevel `json:"warning"`
	Nearest   string              `json:"nearest,omitempty"`
	DistanceM *float64            `json:"distance_m,omitempty"`
}

type warningEvent struct {
	SessionID string              `json:"session_id"`
	Overall   domain.WarningLevel `json:"overall"`
	Previous  domain.WarningLevel `json:"previous"`
	Peers     []peerWarning       `json:"peers"`
	At        time.Time           `json:"at"`
}

func newWarningEvent(snap domain.Snapshot, prev domain.WarningLevel) warningEvent {
	ev := warningEvent{
		SessionID: snap.Status.SessionID,
		Overall:   snap.Aggregate.Overall,
		Previous:  prev,
		Peers:     make([]peerWarning, 0, len(snap.Peers)),
		At:        snap.At,
	}
	for _, v := range snap.Peers {
		pw := peerWarning{Label: v.Label, PeerID: v.PeerID, Warning: v.Warning}
		if v.Nearest != nil {
			d := v.Nearest.DistanceM
			pw.Nearest = v.Nearest.Label
			pw.DistanceM = &d
		}
		ev.Peers = append(ev.Peers, pw)
	}
	return ev
}

type summaryEvent struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	domain.Summary
}

func newSummaryEvent(snap domain.Snapshot, s domain.Summary) summaryEvent {
	return summaryEvent{SessionID: snap.Status.SessionID, Text: s.Text(), Summary: s}
}
