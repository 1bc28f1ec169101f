package control

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	werr "github.com/BelaPlatform/watcher-go/internal/errors"
	"github.com/BelaPlatform/watcher-go/internal/watcher"
	"github.com/BelaPlatform/watcher-go/internal/watcher/logfile"
	"github.com/BelaPlatform/watcher-go/internal/watcher/pipe"
	"github.com/BelaPlatform/watcher-go/internal/watcher/stream"
	"github.com/BelaPlatform/watcher-go/internal/watcher/wtype"
)

// Context carries the mutable state a control request is applied against:
// the registry (for name lookups and direct state changes) and the to-RT
// pipe (for commands that must cross into the RT thread). Mirrors the
// teacher's control.Context: explicit required fields, no hidden globals.
type Context struct {
	Registry   *watcher.Registry
	ToRT       *pipe.ToRTPipe
	SampleRate float32
	LogDir     string
	ManagerID  uint64
	Clock      func() uint64
	Logger     *slog.Logger
}

func (ctx *Context) logf(format string, args ...any) {
	if ctx.Logger != nil {
		ctx.Logger.Warn(fmt.Sprintf(format, args...))
	}
}

// Handle decodes and applies one JSON control request, returning the
// marshalled JSON responses produced synchronously (currently only "list")
// and a joined error describing any elements that were skipped. Per spec
// §4.6/§7, a bad element never aborts the rest of the request.
func Handle(ctx *Context, data []byte) ([][]byte, error) {
	cmds, err := decodeRequest(data)
	if err != nil {
		return nil, err
	}

	var responses [][]byte
	var errs error
	published := false

	for _, rc := range cmds {
		switch rc.Cmd {
		case "list":
			responses = append(responses, EncodeList(ctx.buildList()))
		case "watch":
			errs = errors.Join(errs, ctx.applyWatchUnwatch(rc, true))
			published = true
		case "unwatch":
			errs = errors.Join(errs, ctx.applyWatchUnwatch(rc, false))
			published = true
		case "log":
			errs = errors.Join(errs, ctx.applyLog(rc))
			published = true
		case "unlog":
			errs = errors.Join(errs, ctx.applyUnlog(rc))
			published = true
		case "monitor":
			errs = errors.Join(errs, ctx.applyMonitor(rc))
		case "control":
			ctx.applyControl(rc, true)
		case "uncontrol":
			ctx.applyControl(rc, false)
		case "set":
			errs = errors.Join(errs, ctx.applySet(rc))
		case "setMask":
			errs = errors.Join(errs, ctx.applySetMask(rc))
		default:
			ctx.logf("control: unknown command %q, dropped", rc.Cmd)
		}
	}

	if published {
		ctx.ToRT.Publish()
	}
	return responses, errs
}

func (ctx *Context) find(op, name string) (*watcher.Entry, error) {
	e, ok := ctx.Registry.Find(name)
	if !ok {
		return nil, werr.NewUnknownVariableError(op, name)
	}
	return e, nil
}

func (ctx *Context) applyWatchUnwatch(rc rawCommand, start bool) error {
	var errs error
	for i, name := range rc.Watchers {
		e, err := ctx.find("control.watch", name)
		if err != nil {
			ctx.logf("watch/unwatch: %v", err)
			errs = errors.Join(errs, err)
			continue
		}
		cmd := pipe.StopWatching
		args := [2]uint64{at(rc.Timestamps, i), 0}
		if start {
			cmd = pipe.StartWatching
			args = [2]uint64{at(rc.Timestamps, i), at(rc.Durations, i)}
		}
		ctx.ToRT.Write(pipe.ToRT{Handle: e.Handle, Cmd: cmd, Args: args})
	}
	return errs
}

func (ctx *Context) applyLog(rc rawCommand) error {
	var errs error
	for i, name := range rc.Watchers {
		e, err := ctx.find("control.log", name)
		if err != nil {
			ctx.logf("log: %v", err)
			errs = errors.Join(errs, err)
			continue
		}
		if e.Log.Phase() != stream.No {
			ctx.logf("log: %q already logging, command ignored", name)
			continue
		}

		fileName := at(rc.FileNames, i)
		if fileName == "" {
			fileName = e.LogFileName
		} else {
			e.LogFileName = fileName
		}
		path := fileName
		if ctx.LogDir != "" {
			path = filepath.Join(ctx.LogDir, fileName)
		}

		w, err := logfile.Create(path, e.Name, e.Type.String(), ctx.ManagerID, ctx.Logger)
		if err != nil {
			ctx.logf("log: opening %q failed: %v", path, err)
			errs = errors.Join(errs, werr.NewLogWriterFailureError("control.log", err))
			continue
		}
		if old := e.SwapLogWriter(w); old != nil {
			_ = old.Close()
		}

		ctx.ToRT.Write(pipe.ToRT{
			Handle: e.Handle,
			Cmd:    pipe.StartLogging,
			Args:   [2]uint64{at(rc.Timestamps, i), at(rc.Durations, i)},
		})
	}
	return errs
}

func (ctx *Context) applyUnlog(rc rawCommand) error {
	var errs error
	for i, name := range rc.Watchers {
		e, err := ctx.find("control.unlog", name)
		if err != nil {
			ctx.logf("unlog: %v", err)
			errs = errors.Join(errs, err)
			continue
		}
		if e.Log.Phase() == stream.No {
			continue // spec §8: "unlog on a NO variable is a no-op"
		}
		ctx.ToRT.Write(pipe.ToRT{
			Handle: e.Handle,
			Cmd:    pipe.StopLogging,
			Args:   [2]uint64{at(rc.Timestamps, i), 0},
		})
	}
	return errs
}

func (ctx *Context) applyMonitor(rc rawCommand) error {
	if len(rc.Periods) < len(rc.Watchers) {
		err := werr.NewProtocolError("control.monitor",
			fmt.Errorf("periods has %d entries, need at least %d for %d watchers", len(rc.Periods), len(rc.Watchers), len(rc.Watchers)))
		ctx.logf("monitor: %v", err)
		return err
	}
	var errs error
	for i, name := range rc.Watchers {
		e, err := ctx.find("control.monitor", name)
		if err != nil {
			ctx.logf("monitor: %v", err)
			errs = errors.Join(errs, err)
			continue
		}
		e.Monitor.SetPeriod(rc.Periods[i])
	}
	return errs
}

func (ctx *Context) applyControl(rc rawCommand, controlled bool) {
	for _, name := range rc.Watchers {
		e, ok := ctx.Registry.Find(name)
		if !ok {
			ctx.logf("control/uncontrol: unknown variable %q", name)
			continue
		}
		e.Cell.SetLocalControl(!controlled)
	}
}

func (ctx *Context) applySet(rc rawCommand) error {
	if len(rc.Values) != len(rc.Watchers) {
		err := werr.NewProtocolError("control.set",
			fmt.Errorf("watchers/values size mismatch: %d vs %d", len(rc.Watchers), len(rc.Values)))
		ctx.logf("set: %v", err)
		return err
	}
	var errs error
	for i, name := range rc.Watchers {
		e, err := ctx.find("control.set", name)
		if err != nil {
			ctx.logf("set: %v", err)
			errs = errors.Join(errs, err)
			continue
		}
		e.Cell.SetRemoteBits(wtype.BitsOf(e.Type, rc.Values[i]))
	}
	return errs
}

func (ctx *Context) applySetMask(rc rawCommand) error {
	if len(rc.Values) != len(rc.Watchers) || len(rc.Masks) != len(rc.Watchers) {
		err := werr.NewProtocolError("control.setMask",
			fmt.Errorf("watchers/values/masks size mismatch: %d/%d/%d", len(rc.Watchers), len(rc.Values), len(rc.Masks)))
		ctx.logf("setMask: %v", err)
		return err
	}
	var errs error
	for i, name := range rc.Watchers {
		e, err := ctx.find("control.setMask", name)
		if err != nil {
			ctx.logf("setMask: %v", err)
			errs = errors.Join(errs, err)
			continue
		}
		if !e.Type.IsInteger() {
			err := werr.NewTypeMismatchError("control.setMask", fmt.Errorf("%q is not an integer type", name))
			ctx.logf("setMask: %v", err)
			errs = errors.Join(errs, err)
			continue
		}
		e.Cell.SetMask(uint32(rc.Values[i]), rc.Masks[i])
	}
	return errs
}

func (ctx *Context) buildList() ListResponse {
	entries := ctx.Registry.All()
	out := make([]WatcherInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, WatcherInfo{
			Name:          e.Name,
			Watched:       e.Stream.Phase() != stream.No,
			Controlled:    !e.Cell.LocalControl(),
			Logged:        e.Log.Phase() != stream.No,
			Monitor:       e.Monitor.Period(),
			LogFileName:   e.LogFileName,
			Value:         wtype.ValueOf(e.Type, e.Cell.GetBits()),
			ValueInput:    formatValueInput(wtype.ValueOf(e.Type, e.Cell.RemoteBits())),
			Type:          e.Type.String(),
			TimestampMode: e.Mode.String(),
		})
	}
	var ts uint64
	if ctx.Clock != nil {
		ts = ctx.Clock()
	}
	return ListResponse{Watchers: out, SampleRate: ctx.SampleRate, Timestamp: ts}
}
