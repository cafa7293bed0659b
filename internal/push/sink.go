package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/mindthecat/internal/model"
	"github.com/dukerupert/mindthecat/internal/notify"
)

// SubscriptionStore is the part of store.PushStore a DeviceSink needs.
type SubscriptionStore interface {
	ListByDevice(ctx context.Context, deviceID string) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// ErrNotDelivered is returned by Show when no subscription accepted the
// notification and none failed with a transient error.
var ErrNotDelivered = errors.New("notification not delivered")

// DeviceSink delivers notifications to the push subscriptions registered for
// one device. A device has permission once a browser on it subscribed.
type DeviceSink struct {
	sender   Sender
	subs     SubscriptionStore
	deviceID string
	logger   *slog.Logger

	// fixed pins the sink to these subscriptions instead of every
	// subscription stored for the device.
	fixed  []model.PushSubscription
	pinned bool
}

func NewDeviceSink(sender Sender, subs SubscriptionStore, deviceID string, logger *slog.Logger) *DeviceSink {
	return &DeviceSink{sender: sender, subs: subs, deviceID: deviceID, logger: logger}
}

// NewSubscriptionSink returns a DeviceSink limited to the given subscriptions
// of deviceID. The sweeper uses it so a group's notification only reaches
// subscriptions owned by members of that group.
func NewSubscriptionSink(sender Sender, subs SubscriptionStore, deviceID string, fixed []model.PushSubscription, logger *slog.Logger) *DeviceSink {
	return &DeviceSink{sender: sender, subs: subs, deviceID: deviceID, logger: logger, fixed: fixed, pinned: true}
}

func (d *DeviceSink) list(ctx context.Context) ([]model.PushSubscription, error) {
	if d.pinned {
		return d.fixed, nil
	}
	return d.subs.ListByDevice(ctx, d.deviceID)
}

func (d *DeviceSink) Permission() notify.Permission {
	if d.deviceID == "" {
		return notify.PermissionDenied
	}
	subs, err := d.list(context.Background())
	if err != nil {
		d.logger.Error("list device subscriptions", "device_id", d.deviceID, "error", err)
		return notify.PermissionDefault
	}
	if len(subs) == 0 {
		return notify.PermissionDefault
	}
	return notify.PermissionGranted
}

// RequestPermission cannot prompt from the server; the browser grants
// permission by subscribing. It reports the current state.
func (d *DeviceSink) RequestPermission(ctx context.Context) (notify.Permission, error) {
	return d.Permission(), nil
}

// Show sends to each subscription on the device and prunes expired ones. It
// fails if no subscription accepted the notification.
func (d *DeviceSink) Show(ctx context.Context, title, body string) error {
	subs, err := d.list(ctx)
	if err != nil {
		return fmt.Errorf("list device subscriptions: %w", err)
	}

	payload := Payload{Title: title, Body: body, URL: "/", Tag: "chore-overdue"}
	var delivered int
	var lastErr error
	for i := range subs {
		err := d.sender.Send(ctx, &subs[i], payload)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrExpired):
			d.logger.Info("push subscription expired", "device_id", d.deviceID, "subscription_id", subs[i].ID)
			if err := d.subs.DeleteByEndpoint(ctx, subs[i].Endpoint); err != nil {
				d.logger.Error("delete expired subscription", "error", err)
			}
		default:
			d.logger.Warn("send push", "device_id", d.deviceID, "subscription_id", subs[i].ID, "error", err)
			lastErr = err
		}
	}

	if delivered > 0 {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return ErrNotDelivered
}
