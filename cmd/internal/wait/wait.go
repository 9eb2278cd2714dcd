package wait

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/dwhkit/warehouse-bootstrap/pkg/api/v1"
	"github.com/dwhkit/warehouse-bootstrap/pkg/client"
)

// Start starts a wait component that returns when the initializer has done its
// job. Dependent containers run this before starting their own workload.
func Start(ctx context.Context, log *slog.Logger, addr string, interval time.Duration) error {
	c, err := client.New(addr)
	if err != nil {
		return err
	}

	log.Info("waiting until initializer completes", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			log.Info("received stop signal, shutting down")
			return nil
		case <-time.After(interval):
			resp, err := c.Status(ctx)
			if err != nil {
				log.Error("error retrieving initializer status", "error", err)
				continue
			}

			switch resp.Status {
			case v1.StatusDone:
				log.Info("initializer succeeded, dependent services can start", "message", resp.Message)
				return nil
			case v1.StatusFailed:
				return fmt.Errorf("initializer failed: %s", resp.Message)
			default:
				log.Info("initializer has not yet succeeded", "status", string(resp.Status), "message", resp.Message)
			}
		}
	}
}
