package manager

import (
	"context"
	"time"

	"github.com/BelaPlatform/watcher-go/internal/watcher/control"
	"github.com/BelaPlatform/watcher-go/internal/watcher/pipe"
)

// workerPollInterval is the worker's polling period: every interval it
// drains the non-RT pipe (a non-blocking read) and services flush requests,
// and between polls it waits on ctx so shutdown remains responsive (spec §5:
// "a bounded timeout, chosen short, e.g. 100ms").
const workerPollInterval = 100 * time.Millisecond

// Run implements the manager worker role (spec §5, role 3): it drains
// acknowledgements published by the RT thread, composes the matching JSON
// response, and services any pending log-flush requests. It blocks until
// ctx is cancelled, at which point it returns.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(workerPollInterval)
	defer ticker.Stop()

	var scratch []pipe.ToNonRT
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.drainAcks(&scratch)
			m.flushPendingLogs()
		}
	}
}

func (m *Manager) drainAcks(scratch *[]pipe.ToNonRT) {
	acks, err := m.toNonRT.Drain(*scratch)
	if err != nil {
		m.log.Warn("ack pipe overrun", "err", err)
	}
	*scratch = acks

	for _, ack := range acks {
		if ack.Cmd != pipe.StartedLogging {
			continue
		}
		e, ok := m.reg.Lookup(ack.Handle)
		if !ok {
			continue
		}
		resp := control.StartedLoggingResponse{
			Watcher:      e.Name,
			LogFileName:  e.LogFileName,
			Timestamp:    ack.Args[0],
			TimestampEnd: ack.Args[1],
		}
		if m.transport == nil {
			continue
		}
		if err := m.transport.SendControl(control.EncodeStartedLogging(resp)); err != nil {
			m.log.Warn("failed to send startedLogging response", "variable", e.Name, "err", err)
		}
	}
}

// flushPendingLogs services every entry whose log channel requested a flush
// on reaching LAST (spec §4.4/§6: "Flush is requested on transition to
// LAST"). Flush/Close are worker-owned per spec §5's split ownership of the
// log file handle.
func (m *Manager) flushPendingLogs() {
	for _, e := range m.reg.All() {
		if !e.TakeFlushRequest() {
			continue
		}
		w := e.LogWriter()
		if w == nil {
			continue
		}
		if err := w.Flush(); err != nil {
			m.log.Error("log flush failed", "variable", e.Name, "err", err)
		}
	}
}
