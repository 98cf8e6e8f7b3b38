// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package guest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aibor/eptvmm/internal/ept"
	"github.com/aibor/eptvmm/internal/exitcode"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/aibor/eptvmm/internal/sys"
	"golang.org/x/sync/errgroup"
)

// Manager creates, runs and destroys guests.
type Manager struct {
	alloc  ept.Allocator
	runner Runner

	mu     sync.Mutex
	guests map[int]*Guest
	nextID int

	group errgroup.Group
}

// NewManager creates a [Manager] that builds guests from pages of alloc and
// runs them with runner.
func NewManager(alloc ept.Allocator, runner Runner) *Manager {
	return &Manager{
		alloc:  alloc,
		runner: runner,
		guests: make(map[int]*Guest),
		nextID: 1,
	}
}

// Create creates a new guest with a guest physical memory of memSize bytes
// and the given entry point. memSize must be a non-zero multiple of the page
// size and entry must be within the guest memory.
func (m *Manager) Create(memSize, entry physmem.Addr) (*Guest, error) {
	if memSize == 0 || !memSize.PageAligned() {
		return nil, fmt.Errorf("%w: memory size %s", sys.ErrInvalidArgument, memSize)
	}

	if entry >= memSize {
		return nil, fmt.Errorf("%w: entry %s outside guest memory", sys.ErrInvalidArgument, entry)
	}

	tree, err := ept.New(m.alloc)
	if err != nil {
		return nil, fmt.Errorf("create ept: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	guest := &Guest{
		id:      m.nextID,
		memSize: memSize,
		entry:   entry,
		alloc:   m.alloc,
		tree:    tree,
		status:  StatusCreated,
		done:    make(chan struct{}),
	}

	m.guests[guest.id] = guest
	m.nextID++

	slog.Debug("Guest created",
		slog.Int("guest", guest.id),
		slog.String("memory", memSize.String()),
		slog.String("entry", entry.String()),
		slog.String("ept_root", tree.Root().String()))

	return guest, nil
}

// Get returns the guest with the given ID.
func (m *Manager) Get(id int) (*Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	guest, ok := m.guests[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	return guest, nil
}

// Len returns the number of guests that are not destroyed.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.guests)
}

// SetRunnable hands the guest to the manager's [Runner]. It returns
// immediately. Use [Manager.Wait] to wait for the guest to exit.
func (m *Manager) SetRunnable(ctx context.Context, guest *Guest) error {
	guest.mu.Lock()
	defer guest.mu.Unlock()

	if guest.status != StatusCreated {
		return fmt.Errorf("%w: set runnable while %s", ErrInvalidState, guest.status)
	}

	guest.status = StatusRunnable

	m.group.Go(func() error {
		exitCode, err := m.runner.Run(ctx, guest)

		slog.Debug("Guest exited",
			slog.Int("guest", guest.id),
			slog.Int("exit_code", exitCode),
			slog.Any("error", err))

		guest.finish(exitCode, err)

		return err
	})

	return nil
}

// Wait blocks until the guest exited or the context is done. If the guest
// exited with a non-zero exit code, an [exitcode.Error] is returned.
func (m *Manager) Wait(ctx context.Context, guest *Guest) error {
	if guest.Status() == StatusCreated {
		return fmt.Errorf("%w: wait for guest that is not runnable", ErrInvalidState)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait for guest %d: %w", guest.id, ctx.Err())
	case <-guest.done:
	}

	guest.mu.Lock()
	defer guest.mu.Unlock()

	if guest.err != nil {
		return fmt.Errorf("run guest %d: %w", guest.id, guest.err)
	}

	if guest.exitCode != 0 {
		return exitcode.Error(guest.exitCode)
	}

	return nil
}

// Destroy tears down the guest's memory and removes it from the manager. A
// runnable guest must exit before it can be destroyed.
func (m *Manager) Destroy(guest *Guest) error {
	guest.mu.Lock()
	defer guest.mu.Unlock()

	switch guest.status {
	case StatusRunnable:
		return fmt.Errorf("%w: destroy while %s", ErrInvalidState, guest.status)
	case StatusDestroyed:
		return nil
	case StatusCreated, StatusExited:
	}

	guest.tree.Release()
	guest.status = StatusDestroyed

	m.mu.Lock()
	delete(m.guests, guest.id)
	m.mu.Unlock()

	slog.Debug("Guest destroyed", slog.Int("guest", guest.id))

	return nil
}

// Shutdown waits for all runnable guests to exit and destroys every guest.
// It returns the first error a [Runner] returned.
func (m *Manager) Shutdown() error {
	err := m.group.Wait()

	m.mu.Lock()
	guests := make([]*Guest, 0, len(m.guests))

	for _, guest := range m.guests {
		guests = append(guests, guest)
	}
	m.mu.Unlock()

	for _, guest := range guests {
		_ = m.Destroy(guest)
	}

	return err
}
