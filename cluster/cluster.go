// Package cluster provides multi-worker orchestration: one goroutine pinned
// to an OS thread per configured CPU, each driving its own
// flashqos.TickDriver against a shared flashqos.TenantRegistry and
// flashqos.GlobalTokenPool. Grounded on the teacher's cluster package, which
// wraps sim.Simulator in InstanceSimulator for per-instance orchestration;
// Worker here plays the same wrapping role around flashqos.TickDriver.
package cluster

import (
	"context"
	"runtime"
	"sync"

	"github.com/flashqos/flashqos/config"
	"github.com/flashqos/flashqos/flashqos"
	"github.com/sirupsen/logrus"
)

// Worker wraps one flashqos.TickDriver for use inside a Controller.
//
// Thread-safety: NOT thread-safe from the outside. Every method except
// Metrics is intended to run on the worker's own goroutine, after Start
// pins it with runtime.LockOSThread — matching the teacher's
// InstanceSimulator contract ("all methods must be called from the same
// goroutine").
type Worker struct {
	id       flashqos.WorkerID
	driver   *flashqos.TickDriver
	manager  *flashqos.TenantManager
	queues   *flashqos.QueueTable
	registry *flashqos.TenantRegistry
}

// NewWorker wraps a TickDriver for worker id. netio and flash are the
// collaborator interfaces this worker's driver will poll every tick.
func NewWorker(
	id flashqos.WorkerID,
	registry *flashqos.TenantRegistry,
	pool *flashqos.GlobalTokenPool,
	queueCapacity int,
	flash flashqos.FlashIO,
	netio flashqos.NetIO,
	bufPool flashqos.BufferPool,
	order flashqos.LCOrder,
) *Worker {
	manager := flashqos.NewTenantManager()
	queues := flashqos.NewQueueTable(queueCapacity)
	dispatch := flashqos.NewDispatchShim(flash, netio, bufPool)
	scheduler := flashqos.NewScheduler(id, registry, manager, queues, pool, flash, dispatch, order)

	driver := &flashqos.TickDriver{
		Worker:    id,
		NetIO:     netio,
		Dispatch:  dispatch,
		Scheduler: scheduler,
		Queues:    queues,
		Manager:   manager,
		Registry:  registry,
	}

	return &Worker{id: id, driver: driver, manager: manager, queues: queues, registry: registry}
}

// ID returns the worker's identifier.
func (w *Worker) ID() flashqos.WorkerID { return w.id }

// Run pins the calling goroutine to its OS thread (kernel-bypass NVMe
// command submission is per-thread state on real hardware; pinning isn't
// load-bearing for this collaborator-free module, but matches the process
// model every real driver of this package will need) and drives ticks until
// ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	w.driver.Run(ctx)
}

// Register admits a new tenant owned by this worker and, on success,
// creates its SoftwareQueue and counts it in the worker's TenantManager (the
// tenant joins an active ring only when a request is enqueued).
// Intended to be called on the worker's own goroutine (e.g. in response to
// a REG message routed here by the control plane), so the SoftwareQueue
// creation and TenantManager update race with nothing.
func (w *Worker) Register(id flashqos.TenantID, latencyUs uint32, iops uint64, rwPct uint8) error {
	if err := w.registry.RegisterFlow(id, latencyUs, iops, rwPct, w.id); err != nil {
		return err
	}
	w.queues.Create(id)
	tenant, _ := w.registry.Lookup(id)
	w.manager.OnTenantRegistered(tenant)
	return nil
}

// Unregister drops one connection's reference to tenant id; once the last
// reference is gone the tenant is retired and its queue freed.
func (w *Worker) Unregister(id flashqos.TenantID) error {
	tenant, ok := w.registry.Lookup(id)
	if !ok {
		return flashqos.ErrInvalidRequest
	}
	if err := w.registry.UnregisterFlow(id); err != nil {
		return err
	}
	if _, stillThere := w.registry.Lookup(id); !stillThere {
		w.manager.OnTenantRemoved(tenant)
		w.queues.Remove(id)
	}
	return nil
}

// Metrics snapshots this worker's current state. Safe to call from another
// goroutine only in the loose, eventually-consistent sense the rest of this
// module tolerates (a diagnostic read, not a scheduling decision).
func (w *Worker) Metrics() flashqos.WorkerMetrics {
	return flashqos.Snapshot(w.id, w.manager, w.queues, w.registry.Lookup)
}

// Controller owns the shared cross-worker state (TenantRegistry,
// GlobalTokenPool) and one Worker per configured CPU, and runs every
// worker's loop concurrently.
type Controller struct {
	Registry *flashqos.TenantRegistry
	Pool     *flashqos.GlobalTokenPool
	Workers  []*Worker

	wg sync.WaitGroup
}

// NewController builds a Controller from cfg: one Worker per entry in
// cfg.CPUs, all sharing one TenantRegistry and GlobalTokenPool. flash and
// netio are shared collaborator instances (flashqos.FlashIO fans out across
// workers by id internally; out of scope here).
func NewController(cfg *config.Config, device *flashqos.DeviceModel, flash flashqos.FlashIO, netio flashqos.NetIO, bufPool flashqos.BufferPool) (*Controller, error) {
	order, err := flashqos.NewLCOrder(cfg.Scheduler)
	if err != nil {
		return nil, err
	}

	cost := flashqos.CostModel{ReadCost4K: cfg.Cost.ReadCost4K, WriteCost4K: cfg.Cost.WriteCost4K}
	registry := flashqos.NewTenantRegistry(cost, device)
	pool := flashqos.NewGlobalTokenPool(len(cfg.CPUs))

	c := &Controller{Registry: registry, Pool: pool}
	for i, cpu := range cfg.CPUs {
		id := flashqos.WorkerID(i)
		logrus.WithFields(logrus.Fields{"worker": id, "cpu": cpu}).Info("flashqos: creating worker")
		c.Workers = append(c.Workers, NewWorker(id, registry, pool, cfg.QueueCapacity, flash, netio, bufPool, order))
	}
	return c, nil
}

// Start launches every worker's loop on its own goroutine and returns
// immediately; call Wait to block until ctx is cancelled and all workers
// have exited.
func (c *Controller) Start(ctx context.Context) {
	for _, w := range c.Workers {
		w := w
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			w.Run(ctx)
		}()
	}
}

// Wait blocks until every worker goroutine launched by Start has exited.
func (c *Controller) Wait() {
	c.wg.Wait()
}
