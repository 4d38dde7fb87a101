package notify

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/rs/zerolog"

	"parkwatch-service/internal/detector"
	"parkwatch-service/internal/domain/sighting"
)

const timestampLayout = "Jan 02, 2006 03:04 PM"

// Notifier dispatches best-effort operator notifications. Every send is
// fire-and-forget from the orchestrator's point of view: a failure is
// reported back as an error for logging and nothing more.
type Notifier struct {
	sender *router.ServiceRouter
	log    zerolog.Logger
}

// New builds a notifier from shoutrrr service URLs. With no URLs configured
// the notifier stays disabled and every dispatch is a silent no-op.
func New(urls []string, logger zerolog.Logger) (*Notifier, error) {
	n := &Notifier{log: logger}
	if len(urls) == 0 {
		logger.Warn().Msg("no notification URLs configured, notifications disabled")
		return n, nil
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("create notification sender: %w", err)
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	n.sender = sender
	return n, nil
}

func (n *Notifier) Violation(plate, address string, observedAt time.Time) error {
	message := fmt.Sprintf(
		"Parking violation: vehicle %s sighted at %s on %s with no active booking.",
		plate, address, observedAt.Format(timestampLayout),
	)
	return n.dispatch("Parking Violation", message)
}

func (n *Notifier) Overstay(plate, address string, overstay *sighting.Overstay, bookedUntil, observedAt time.Time, bookingID int64) error {
	message := fmt.Sprintf(
		"Overstay: vehicle %s at %s has exceeded booking #%d by %dh %dm (booked until %s, observed %s). Additional charge: %.2f (%d chargeable hour(s) at %.2f/hr).",
		plate, address, bookingID,
		overstay.OverstayHours, overstay.OverstayMinutes,
		bookedUntil.Format(timestampLayout), observedAt.Format(timestampLayout),
		overstay.AdditionalCharge, overstay.ChargeableHours, overstay.HourlyRate,
	)
	return n.dispatch("Parking Overstay", message)
}

func (n *Notifier) FireAlert(address, zone, plate, severity string, fires []detector.Detection, observedAt time.Time, cameraID string) error {
	labels := make([]string, 0, len(fires))
	for _, f := range fires {
		labels = append(labels, f.Label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Fire detected at %s (%s) on %s. %d instance(s): %s.",
		severity, zone, address, observedAt.Format(timestampLayout), len(fires), strings.Join(labels, ", "))
	if plate != "" {
		fmt.Fprintf(&b, " Nearby vehicle plate: %s.", plate)
	}
	if cameraID != "" {
		fmt.Fprintf(&b, " Camera: %s.", cameraID)
	}
	return n.dispatch("Fire Alert", b.String())
}

func (n *Notifier) dispatch(title, message string) error {
	if n.sender == nil {
		n.log.Debug().Str("title", title).Msg("notifications disabled, dropping message")
		return nil
	}

	params := stypes.Params{}
	params.SetTitle(title)
	for _, err := range n.sender.Send(message, &params) {
		if err != nil {
			return fmt.Errorf("send %q notification: %w", title, err)
		}
	}
	return nil
}
