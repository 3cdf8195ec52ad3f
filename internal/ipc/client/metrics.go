// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package client

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("openagent-terminal.ipc.client")

	requestLatency    metric.Float64Histogram
	requestTotal      metric.Int64Counter
	reconnectTotal    metric.Int64Counter
	notificationDrops metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		requestLatency, err = meter.Float64Histogram(
			"ipc_client_request_duration_seconds",
			metric.WithDescription("Duration of IPC request/response round-trips"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		requestTotal, err = meter.Int64Counter(
			"ipc_client_requests_total",
			metric.WithDescription("Total number of IPC requests sent"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		reconnectTotal, err = meter.Int64Counter(
			"ipc_client_reconnects_total",
			metric.WithDescription("Total number of reconnect attempts"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		notificationDrops, err = meter.Int64Counter(
			"ipc_client_notification_drops_total",
			metric.WithDescription("Total number of notifications dropped due to a full queue"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRequest(ctx context.Context, method string, duration time.Duration, success bool) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("success", success),
	)
	requestLatency.Record(ctx, duration.Seconds(), attrs)
	requestTotal.Add(ctx, 1, attrs)
}

func recordReconnect(ctx context.Context, attempt int, outcome string) {
	if initMetrics() != nil {
		return
	}
	reconnectTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.String("outcome", outcome),
	))
}

func recordNotificationDrop(ctx context.Context, method string) {
	if initMetrics() != nil {
		return
	}
	notificationDrops.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}
