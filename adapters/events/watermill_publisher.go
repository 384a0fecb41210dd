package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	ua "github.com/mileusna/useragent"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
)

const (
	SolvedTopic       = "verigate.session.solved"
	VerificationTopic = "verigate.verification"
)

// Device classes reported for solving clients
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
)

// SolvedEvent is published when a session completes its challenge.
// Client fields come from the advisory user agent and may be empty.
type SolvedEvent struct {
	SessionID string             `json:"session_id"`
	SiteKey   string             `json:"site_key"`
	Challenge core.ChallengeKind `json:"challenge"`
	Browser   string             `json:"browser,omitempty"`
	OS        string             `json:"os,omitempty"`
	Device    string             `json:"device,omitempty"`
	SolvedAt  time.Time          `json:"solved_at"`
}

// VerificationEvent is published for every verification decision
type VerificationEvent struct {
	SiteKey    string      `json:"site_key"`
	SessionID  string      `json:"session_id,omitempty"`
	Accepted   bool        `json:"accepted"`
	Reason     core.Reason `json:"reason,omitempty"`
	VerifiedAt time.Time   `json:"verified_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		now:       time.Now,
	}
}

// PublishSolved publishes a solved event
func (p *WatermillPublisher) PublishSolved(ctx context.Context, session core.Session, userAgent string) error {
	client := ua.Parse(userAgent)
	return p.publish(ctx, SolvedTopic, SolvedEvent{
		SessionID: session.ID,
		SiteKey:   session.SiteKey,
		Challenge: session.Kind,
		Browser:   client.Name,
		OS:        client.OS,
		Device:    deviceClass(client),
		SolvedAt:  p.now(),
	})
}

// PublishVerification publishes a verification event
func (p *WatermillPublisher) PublishVerification(ctx context.Context, siteKey string, verdict core.Verdict) error {
	return p.publish(ctx, VerificationTopic, VerificationEvent{
		SiteKey:    siteKey,
		SessionID:  verdict.Claims.SessionID,
		Accepted:   verdict.Accepted,
		Reason:     verdict.Reason,
		VerifiedAt: p.now(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func deviceClass(client ua.UserAgent) string {
	switch {
	case client.Bot:
		return DeviceBot
	case client.Tablet:
		return DeviceTablet
	case client.Mobile:
		return DeviceMobile
	case client.Desktop:
		return DeviceDesktop
	}
	return ""
}
