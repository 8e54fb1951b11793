// Command gotick-sim runs the tick core against the reference scheduler
// with a wall-clock tick source: boot calibration, sleeping and spinning
// threads, and a stats report at the end.
package main

import (
	"flag"
	"fmt"
	"time"

	"gotick/core"
	"gotick/sched"
)

var (
	runFor   = flag.Duration("run", 3*time.Second, "how long to run after boot")
	feedback = flag.Bool("feedback", true, "enable feedback priorities")
	spinners = flag.Int("spinners", 2, "CPU-bound threads to spawn")
)

const tickInterval = time.Second / core.TickFrequency

func main() {
	flag.Parse()

	core.SetDebugWriter(func(s string) { fmt.Println(s) })

	s := sched.New()
	core.Init(s)
	core.SetFeedbackMode(*feedback)

	boot()

	deadline := time.Now().Add(*runFor)

	var blinks, probes int
	var maxSlack core.Tick

	s.Spawn("blink", 0, func() {
		for time.Now().Before(deadline) {
			core.SleepMillis(100)
			blinks++
		}
	})

	// The probe measures wake slack: ticks delivered past the sleep's
	// lower bound.
	s.Spawn("probe", -5, func() {
		for time.Now().Before(deadline) {
			before := core.Now()
			core.SleepMillis(250)
			if slack := core.Elapsed(before) - 25; slack > maxSlack {
				maxSlack = slack
			}
			probes++
		}
	})

	for i := 0; i < *spinners; i++ {
		s.Spawn(fmt.Sprintf("spin%d", i), 5, func() {
			for time.Now().Before(deadline) {
				if s.ShouldYield() {
					s.Yield()
				}
			}
		})
	}

	run(s, deadline)
	report(s, blinks, probes, maxSlack)
}

// boot drives the tick source from a goroutine while calibration's busy
// waits run on the main one. Once threads exist the run loop takes over
// and tick delivery moves inline.
func boot() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		tk := time.NewTicker(tickInterval)
		defer tk.Stop()
		for {
			select {
			case <-tk.C:
				core.TickInterrupt()
			case <-stop:
				return
			}
		}
	}()

	core.Calibrate()

	close(stop)
	<-done
}

// run owns both scheduling and tick delivery: ticks fire between
// dispatches, while the loop holds the token.
func run(s *sched.Scheduler, deadline time.Time) {
	tk := time.NewTicker(tickInterval)
	defer tk.Stop()

	for time.Now().Before(deadline) {
		if !s.Step() {
			// Nothing runnable until a tick releases a sleeper.
			<-tk.C
			core.TickInterrupt()
			continue
		}
		select {
		case <-tk.C:
			core.TickInterrupt()
		default:
		}
	}
}

func report(s *sched.Scheduler, blinks, probes int, maxSlack core.Tick) {
	core.PrintStats()

	hs := core.HandlerStats()
	fmt.Printf("handler: %d ticks, %d priority recomputes, %d global recomputes\n",
		hs.Ticks, hs.PriorityRecomputes, hs.GlobalRecomputes)
	fmt.Printf("blink: %d wakes\n", blinks)
	fmt.Printf("probe: %d wakes, max slack %d ticks\n", probes, maxSlack)
	if core.FeedbackMode() {
		fmt.Printf("load average: %s\n", centi(s.LoadAverage100()))
	}

	fmt.Println("threads:")
	for _, ti := range s.Threads() {
		fmt.Printf("  %-7s %-9s pri=%-2d nice=%+d cpu=%s\n",
			ti.Name, ti.State, ti.Priority, ti.Nice, centi(ti.RecentCPU100))
	}
}

// centi formats a value scaled by 100 with two decimal places.
func centi(v int) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
