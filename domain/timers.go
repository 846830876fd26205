package domain

import (
	"time"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/seqnum"
)

// defaultHeartbeatPeriod is the interval between periodic HEARTBEATs a
// Reliable StatefulWriter sends to its matched readers (spec §4.6).
const defaultHeartbeatPeriod = 1 * time.Second

// Timer callbacks below run on the scheduler's run loop goroutine (spec
// §4.6: "periodic heartbeat," "one-shot deadline-missed," "one-shot
// lifespan," "participant lease-refresh" are all ScheduleTimer callbacks),
// which is the same goroutine submitSync's closures run on. They therefore
// mutate actor state directly rather than calling back through
// submitSync/Submit, which would deadlock against the very goroutine
// running the timer.

// scheduleWriterHeartbeat arms dw's periodic heartbeat, rescheduling itself
// after every fire until cancelWriterTimers runs (spec §4.6 "deleting an
// entity aborts its timers").
func (p *Participant) scheduleWriterHeartbeat(dw *DataWriter) {
	var tick func()
	tick = func() {
		dw.rtps.SendHeartbeats()
		h, err := p.scheduler.ScheduleTimer(defaultHeartbeatPeriod, tick)
		if err == nil {
			dw.heartbeatTimer = h
		}
	}
	h, err := p.scheduler.ScheduleTimer(defaultHeartbeatPeriod, tick)
	if err == nil {
		dw.heartbeatTimer = h
	}
}

// armLifespanTimer schedules removal of sn from dw's HistoryCache once its
// lifespan elapses (spec §4.1 Lifespan QoS).
func (p *Participant) armLifespanTimer(dw *DataWriter, sn seqnum.SequenceNumber, lifespan time.Duration) {
	h, err := p.scheduler.ScheduleTimer(lifespan, func() {
		dw.history.RemoveChange(sn)
		delete(dw.lifespanTimers, sn)
	})
	if err == nil {
		dw.lifespanTimers[sn] = h
	}
}

// rearmDeadlineTimer cancels any previous deadline timer for instanceHandle
// and arms a fresh one (spec §4.6 "rearmed on every write"). If it fires
// with no intervening write, it reports OfferedDeadlineMissed and re-arms
// itself so a sustained gap keeps reporting misses, each one incrementing
// the writer's total_count (spec §8 scenario 6).
func (p *Participant) rearmDeadlineTimer(dw *DataWriter, instanceHandle guid.InstanceHandle, period time.Duration) {
	if h, ok := dw.deadlineTimers[instanceHandle]; ok {
		p.scheduler.CancelTimer(h)
	}
	var arm func()
	arm = func() {
		h, err := p.scheduler.ScheduleTimer(period, func() {
			p.fireOfferedDeadlineMissed(dw, instanceHandle)
			arm()
		})
		if err == nil {
			dw.deadlineTimers[instanceHandle] = h
		}
	}
	arm()
}

func (p *Participant) fireOfferedDeadlineMissed(dw *DataWriter, instanceHandle guid.InstanceHandle) {
	dw.offeredDeadlineMissedCount++
	if dw.Listener.OnOfferedDeadlineMissed == nil {
		return
	}
	status := OfferedDeadlineMissedStatus{
		TotalCount:         dw.offeredDeadlineMissedCount,
		TotalCountChange:   1,
		LastInstanceHandle: instanceHandle,
	}
	p.dispatchListener(func() { dw.Listener.OnOfferedDeadlineMissed(status) })
}

// cancelWriterTimers aborts every timer owned by dw (spec §4.6 "deleting an
// entity aborts its timers and makes queued mail for it a no-op").
func (p *Participant) cancelWriterTimers(dw *DataWriter) {
	if dw.heartbeatTimer != 0 {
		p.scheduler.CancelTimer(dw.heartbeatTimer)
	}
	for _, h := range dw.deadlineTimers {
		p.scheduler.CancelTimer(h)
	}
	for _, h := range dw.lifespanTimers {
		p.scheduler.CancelTimer(h)
	}
}

// scheduleLeaseRefresh arms the periodic SPDP re-announce and the stale
// participant expiry sweep, both driven off this participant's own lease
// duration (spec §4.5 "lease refresh interval lease_duration/3").
func (p *Participant) scheduleLeaseRefresh() {
	interval := p.leaseDuration / 3
	if interval <= 0 {
		interval = time.Second
	}
	var tick func()
	tick = func() {
		p.announceSpdp()
		p.participants.ExpireStale(time.Now())
		h, err := p.scheduler.ScheduleTimer(interval, tick)
		if err == nil {
			p.leaseTimer = h
		}
	}
	h, err := p.scheduler.ScheduleTimer(interval, tick)
	if err == nil {
		p.leaseTimer = h
	}
}
