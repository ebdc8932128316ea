// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package control

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// CheckOptions tunes CheckHealth.
type CheckOptions struct {
	// Attempts is the total number of tries. Values below 1 mean one.
	Attempts uint64
	// Backoff is the initial delay between attempts.
	Backoff time.Duration
}

// CheckHealth queries the health service at addr and returns the status of
// ServiceName. Transport failures are retried with exponential backoff;
// a definite answer from the server is returned immediately.
func CheckHealth(ctx context.Context, addr string, opts CheckOptions) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, oops.Code("CONTROL_UNREACHABLE").
			With("addr", addr).
			Wrap(err)
	}
	defer func() { _ = conn.Close() }()

	client := healthpb.NewHealthClient(conn)

	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(opts.Attempts-1, retry.NewExponential(opts.Backoff))

	status := healthpb.HealthCheckResponse_UNKNOWN
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			return retry.RetryableError(err)
		}
		status = resp.GetStatus()
		return nil
	})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, oops.Code("CONTROL_UNREACHABLE").
			With("addr", addr).
			Wrap(err)
	}
	return status, nil
}
