package sched

import "gotick/core"

type sleeper struct {
	t    *thread
	wake core.Tick
}

// sleepQueue is a fixed-capacity table of sleeping threads kept sorted by
// wake tick, earliest first. Insertion shifts entries; release pops from
// the front. Both run without allocating, which the tick-handler side
// requires.
type sleepQueue struct {
	entries [MaxSleepers]sleeper
	n       int
}

// add books t to wake at the given tick. Equal wake ticks keep insertion
// order. A full queue is a contract violation of the bounded thread table.
func (q *sleepQueue) add(t *thread, wake core.Tick) {
	if q.n == len(q.entries) {
		panic("sched: sleep queue full")
	}
	i := q.n
	for i > 0 && q.entries[i-1].wake > wake {
		q.entries[i] = q.entries[i-1]
		i--
	}
	q.entries[i] = sleeper{t: t, wake: wake}
	q.n++
}

// releaseDue readies every entry with wake <= now and compacts the rest to
// the front.
func (q *sleepQueue) releaseDue(now core.Tick) {
	n := 0
	for n < q.n && q.entries[n].wake <= now {
		q.entries[n].t.state = StateReady
		n++
	}
	if n == 0 {
		return
	}
	copy(q.entries[:], q.entries[n:q.n])
	for i := q.n - n; i < q.n; i++ {
		q.entries[i] = sleeper{}
	}
	q.n -= n
}
