package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"time"
)

const defaultProgressInterval = 3 * time.Second

func defaultProgressWriter() io.Writer {
	return os.Stderr
}

// progressMonitor periodically prints how far the simulation has gone. It
// only reads the atomic fields of the timeline and never changes them.
type progressMonitor struct {
	timeline  *Timeline
	interval  time.Duration
	out       io.Writer
	startTime time.Time
}

func newProgressMonitor(
	t *Timeline,
	interval time.Duration,
	out io.Writer,
) (*progressMonitor, error) {
	if out == nil {
		return nil, errors.New("no progress writer")
	}

	if interval <= 0 {
		return nil, fmt.Errorf("invalid progress interval %s", interval)
	}

	return &progressMonitor{
		timeline: t,
		interval: interval,
		out:      out,
	}, nil
}

// startProgressMonitor launches the monitor if it is enabled. The returned
// function cancels the monitor and waits for it to exit.
func (t *Timeline) startProgressMonitor() (stop func()) {
	if !t.showProgress.Load() {
		return func() {}
	}

	m, err := newProgressMonitor(t, t.progressInterval, t.progressWriter)
	if err != nil {
		log.Printf("progress monitor disabled: %v", err)
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.startTime = time.Now()

	go func() {
		defer close(done)
		m.loop(ctx)
	}()

	return func() {
		cancel()
		<-done
	}
}

func (m *progressMonitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.report()

		select {
		case <-ctx.Done():
			fmt.Fprintln(m.out)
			return
		case <-ticker.C:
			if !m.timeline.IsRunning() {
				fmt.Fprintln(m.out)
				return
			}
		}
	}
}

func (m *progressMonitor) report() {
	fmt.Fprintf(m.out, "\r%s", m.line(time.Since(m.startTime)))
}

func (m *progressMonitor) line(elapsed time.Duration) string {
	stop := "unbounded"
	if stopTime := m.timeline.StopTime(); stopTime != Forever {
		stop = HumanTime(psToNs(stopTime))
	}

	return fmt.Sprintf(
		"execution time: %s;     simulation time: %s / %s",
		HumanTime(float64(elapsed.Nanoseconds())),
		HumanTime(psToNs(m.timeline.Now())),
		stop,
	)
}

func psToNs(t VTimeInPs) float64 {
	return float64(t) / 1e3
}

// HumanTime formats a number of nanoseconds into a string like "12 ns",
// "3 ms, 250.00 ns", "1.50 sec", "2 min: 3.00 sec" or
// "1 hour: 2 min: 3.00 sec".
func HumanTime(ns float64) string {
	if ns < 1e6 {
		return fmt.Sprintf("%d ns", int64(ns))
	}

	ms := ns / 1e6
	if ms < 1e3 {
		return fmt.Sprintf("%d ms, %.2f ns", int64(ms), math.Mod(ns, 1e6))
	}

	sec := ms / 1e3
	if sec < 60 {
		return fmt.Sprintf("%.2f sec", sec)
	}

	minutes := math.Floor(sec / 60)
	sec = math.Mod(sec, 60)

	if minutes < 60 {
		return fmt.Sprintf("%d min: %.2f sec", int64(minutes), sec)
	}

	hours := math.Floor(minutes / 60)
	minutes = math.Mod(minutes, 60)

	return fmt.Sprintf("%d hour: %d min: %.2f sec",
		int64(hours), int64(minutes), sec)
}
