package postgresadapter

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// TransactionIDGenerator mints the numeric identifiers the provider expects:
// clock-derived digits plus a counter suffix against same-tick collisions.
type TransactionIDGenerator struct {
	counter atomic.Int64
}

func (g *TransactionIDGenerator) NewID(_ context.Context) (string, error) {
	return fmt.Sprintf("%d%03d", time.Now().UnixMicro(), g.counter.Add(1)%1000), nil
}
