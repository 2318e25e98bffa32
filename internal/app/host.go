// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/relabs-tech/optical_tachometer/internal/command"
	"github.com/relabs-tech/optical_tachometer/internal/tacho"
	"github.com/relabs-tech/optical_tachometer/internal/telemetry"
)

// Publisher receives everything the host emits.
type Publisher interface {
	PublishReading(r telemetry.Reading)
	PublishAlignment(a telemetry.Alignment)
	PublishReply(r telemetry.Reply)
}

// Line is one command line from a transport. Respond, when set, also gets
// the reply so the transport can answer on the same channel.
type Line struct {
	Source  string
	Text    string
	Respond func(telemetry.Reply)
}

// Host owns the engine and is the only goroutine that touches it.
type Host struct {
	engine   *tacho.Engine
	commands *command.Registry
	pub      Publisher
	session  string
	log      *slog.Logger

	publishEvery time.Duration
	lastPublish  time.Time
}

func NewHost(engine *tacho.Engine, commands *command.Registry, pub Publisher, session string, publishEvery time.Duration, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	return &Host{
		engine:       engine,
		commands:     commands,
		pub:          pub,
		session:      session,
		log:          log,
		publishEvery: publishEvery,
	}
}

// HandleLine runs one command and publishes the reply.
func (h *Host) HandleLine(l Line, now time.Time) telemetry.Reply {
	reply := telemetry.Reply{Session: h.session, Time: now, Source: l.Source, Command: l.Text}

	out, err := h.commands.Execute(l.Text)
	if err != nil {
		reply.Error = err.Error()
		h.log.Warn("command failed", "source", l.Source, "line", l.Text, "err", err)
	} else {
		reply.OK = true
		reply.Output = out
		h.log.Info("command", "source", l.Source, "line", l.Text)
	}

	h.pub.PublishReply(reply)
	if l.Respond != nil {
		l.Respond(reply)
	}
	return reply
}

// Step runs one engine tick and publishes what it produced. Readings are
// rate limited to one per publish interval.
func (h *Host) Step(now time.Time) tacho.Report {
	rep := h.engine.Tick()

	if rep.HasAlignment {
		h.pub.PublishAlignment(telemetry.NewAlignment(h.session, now, rep.Alignment))
	}
	if rep.Mode == tacho.ModeReadingRPM && rep.Estimate.WindowClosed && now.Sub(h.lastPublish) >= h.publishEvery {
		h.lastPublish = now
		h.pub.PublishReading(telemetry.NewReading(h.session, now, rep, h.engine))
	}
	return rep
}

// Run ticks the engine every interval and serves lines until ctx is done.
func (h *Host) Run(ctx context.Context, lines <-chan Line, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.log.Info("host loop started", "tick", interval, "session", h.session)
	for {
		select {
		case <-ctx.Done():
			h.engine.StopReading()
			h.engine.StopAlignment()
			h.log.Info("host loop stopped")
			return nil
		case l := <-lines:
			h.HandleLine(l, time.Now())
		case t := <-ticker.C:
			h.Step(t)
		}
	}
}
