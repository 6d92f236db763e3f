// Package bootstrap assembles the daemon: config, token store, gateway
// client, dedupe, scheduler, and status reporter, wired together.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NoPKT/agentim/internal/agent"
	"github.com/NoPKT/agentim/internal/bus"
	"github.com/NoPKT/agentim/internal/config"
	"github.com/NoPKT/agentim/internal/gateway"
	"github.com/NoPKT/agentim/internal/scheduler"
	"github.com/NoPKT/agentim/internal/status"
	"github.com/NoPKT/agentim/pkg/protocol"
)

// AdapterFactory builds the execution adapter for one configured agent.
// sink receives the adapter's terminal callbacks.
type AdapterFactory func(cfg config.AgentConfig, sink agent.Completion) agent.Adapter

// Daemon is the assembled delivery core.
type Daemon struct {
	cfg      *config.Config
	factory  AdapterFactory
	tokens   *config.TokenStore
	client   *gateway.Client
	sched    *scheduler.Scheduler
	reporter *status.Reporter
	dedupe   *bus.DedupeCache
	watcher  *config.Watcher
}

// New wires the daemon from cfg. The factory is called once per
// configured agent, and again for agents added by a config reload.
func New(cfg *config.Config, factory AdapterFactory) (*Daemon, error) {
	d := &Daemon{
		cfg:     cfg,
		factory: factory,
		tokens:  config.NewTokenStore(cfg.Coordinator.KeyringService, cfg.Coordinator.TokenFile),
	}

	co := cfg.Coordinator
	d.client = gateway.New(gateway.Options{
		URL:          co.URL,
		PingInterval: time.Duration(co.PingIntervalMs) * time.Millisecond,
		PongTimeout:  time.Duration(co.PongTimeoutMs) * time.Millisecond,
		BackoffBase:  time.Duration(co.BackoffBaseMs) * time.Millisecond,
		BackoffMax:   time.Duration(co.BackoffMaxMs) * time.Millisecond,
		MaxAttempts:  co.MaxAttempts,
		QueueCap:     co.QueueCap,
		SendRate:     co.SendRate,
		SendBurst:    co.SendBurst,
		Refresher: func(_ context.Context) (string, error) {
			// the token store is the source of truth; an empty result
			// means the session is gone for good
			return d.tokens.Load()
		},
	})

	d.sched = scheduler.New(scheduler.Config{
		QueueCap:        cfg.Scheduler.QueueCap,
		DispatchTimeout: time.Duration(cfg.Scheduler.DispatchTimeoutMs) * time.Millisecond,
	})
	d.reporter = status.NewReporter(d.client)
	d.sched.OnTransition(d.reporter.AgentTransition)

	d.dedupe = bus.NewDedupeCache(
		time.Duration(cfg.Scheduler.DedupeTTLMin)*time.Minute,
		cfg.Scheduler.DedupeSize,
	)

	for _, ac := range cfg.Agents {
		if err := d.registerAgent(ac); err != nil {
			return nil, err
		}
	}

	d.client.OnInbound(d.handleInbound)
	return d, nil
}

// Client exposes the gateway client (CLI, tests).
func (d *Daemon) Client() *gateway.Client { return d.client }

// Scheduler exposes the scheduler (CLI, tests).
func (d *Daemon) Scheduler() *scheduler.Scheduler { return d.sched }

func (d *Daemon) registerAgent(ac config.AgentConfig) error {
	adapter := d.factory(ac, d.sched)
	if err := d.sched.Register(ac.ID, adapter); err != nil {
		adapter.Close()
		return fmt.Errorf("register agent %q: %w", ac.ID, err)
	}
	return nil
}

// handleInbound routes validated application frames from the gateway.
func (d *Daemon) handleInbound(frame protocol.Frame) {
	switch f := frame.(type) {
	case *protocol.WorkFrame:
		if d.dedupe.IsDuplicate(f.ID) {
			slog.Debug("duplicate work item dropped", "agent", f.AgentID, "id", f.ID)
			return
		}
		item := agent.WorkItem{AgentID: f.AgentID, ID: f.ID, Content: f.Content}
		err := d.sched.Enqueue(f.AgentID, item)
		switch {
		case errors.Is(err, scheduler.ErrQueueFull):
			// terminal completion so the submitter is not left waiting;
			// un-record the ID so a later resubmit is not deduped away
			d.dedupe.Forget(f.ID)
			d.client.Send(protocol.NewRejection(f.AgentID, f.ID, protocol.ErrCodeQueueFull, "queue is full"))
		case errors.Is(err, scheduler.ErrUnknownAgent):
			// tolerated race with concurrent agent removal
			slog.Debug("work for unknown agent ignored", "agent", f.AgentID, "id", f.ID)
		}

	case *protocol.StopFrame:
		d.sched.Stop(f.AgentID)
	}
}

// applyAgents reconciles the registered agents with a reloaded config:
// new IDs are registered, vanished IDs are removed, survivors are left
// untouched.
func (d *Daemon) applyAgents(cfg *config.Config) {
	want := make(map[string]config.AgentConfig, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		want[ac.ID] = ac
	}

	for _, st := range d.sched.Stats() {
		if _, ok := want[st.ID]; !ok {
			d.sched.Remove(st.ID)
			d.reporter.Forget(st.ID)
			slog.Info("agent removed by config reload", "agent", st.ID)
		}
	}
	for id, ac := range want {
		if err := d.registerAgent(ac); err != nil {
			if errors.Is(err, scheduler.ErrDuplicateAgent) {
				continue // already registered, keep as is
			}
			slog.Error("agent registration failed on reload", "agent", id, "error", err)
		}
	}
}

// Run connects to the coordinator and blocks until ctx is done.
func (d *Daemon) Run(ctx context.Context, configPath string) error {
	token, err := d.tokens.Load()
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		return errors.New("no coordinator token stored; run `agentim token set` first")
	}

	if configPath != "" {
		w, err := config.NewWatcher(configPath)
		if err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		w.OnChange(d.applyAgents)
		if err := w.Start(); err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		d.watcher = w
	}

	d.client.Connect(token)
	slog.Info("daemon running", "coordinator", d.cfg.Coordinator.URL, "agents", len(d.cfg.Agents))

	<-ctx.Done()
	d.Close()
	return nil
}

// Close tears everything down: scheduler entries (adapters closed),
// watcher, and the coordinator link.
func (d *Daemon) Close() {
	if d.watcher != nil {
		d.watcher.Stop()
	}
	for _, st := range d.sched.Stats() {
		d.sched.Remove(st.ID)
	}
	d.client.Disconnect()
	slog.Info("daemon stopped")
}
