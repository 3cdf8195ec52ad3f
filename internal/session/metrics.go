// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("openagent-terminal.session")

	saveTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error
		saveTotal, err = meter.Int64Counter(
			"session_store_saves_total",
			metric.WithDescription("Total number of session save operations (create/add_message/save)"),
		)
		metricsErr = err
	})
	return metricsErr
}

func recordSave(ctx context.Context, outcome string) {
	if initMetrics() != nil {
		return
	}
	saveTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
