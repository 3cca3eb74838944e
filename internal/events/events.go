// Package events publishes room lifecycle events to a message broker.
// Events carry room ids and connection identities only, never signaling
// payloads.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type Kind string

const (
	RoomCreated       Kind = "room_created"
	ParticipantJoined Kind = "participant_joined"
	ParticipantLeft   Kind = "participant_left"
	HostChanged       Kind = "host_changed"
	RoomReaped        Kind = "room_reaped"
)

type Event struct {
	Kind     Kind      `json:"kind"`
	RoomID   string    `json:"room_id"`
	Identity string    `json:"identity,omitempty"`
	At       time.Time `json:"at"`
}

func New(kind Kind, roomID, identity string) Event {
	return Event{Kind: kind, RoomID: roomID, Identity: identity, At: time.Now().UTC()}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to some sink. Implementations need not be safe
// for concurrent use; Async serializes calls.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi fans an event out to several publishers.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Options struct {
	AMQPURL      string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string
}

// Open builds a publisher for every configured broker, or Nop when none is.
func Open(opts Options) (Publisher, error) {
	var pubs Multi

	if opts.AMQPURL != "" {
		p, err := DialAMQP(opts.AMQPURL, opts.AMQPQueue)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}

	if len(opts.KafkaBrokers) > 0 {
		pubs = append(pubs, NewKafka(opts.KafkaBrokers, opts.KafkaTopic))
	}

	switch len(pubs) {
	case 0:
		return Nop{}, nil
	case 1:
		return pubs[0], nil
	default:
		return pubs, nil
	}
}
