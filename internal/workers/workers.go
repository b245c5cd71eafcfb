package workers

import (
	"context"
	"log"
	"time"
)

// Sweeper finalizes every expired challenge and reports how many it closed.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// StartFinalizationSweep runs the expiry sweep on a fixed cadence until
// stop is closed. Challenges run for days, so a cadence of minutes is
// plenty; the sweep itself is guarded and safe to run concurrently with
// manual finalization.
func StartFinalizationSweep(sweeper Sweeper, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runSweep(sweeper)
			case <-stop:
				log.Println("Finalization sweep stopped")
				return
			}
		}
	}()
}

func runSweep(sweeper Sweeper) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	count, err := sweeper.SweepExpired(ctx)
	if err != nil {
		log.Printf("Finalization sweep error: %v", err)
		return
	}
	if count > 0 {
		log.Printf("Finalization sweep closed %d challenge(s)", count)
	}
}
