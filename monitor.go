// Copyright (C) 2023 Andrew Dunstall
//
// Seastore is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Seastore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package seastore

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const monitorLogInterval = 30 * time.Second

// monitor counts transport and dispatch activity and periodically logs a
// snapshot. Closing is best-effort; the client swallows monitor close
// failures during shutdown.
type monitor struct {
	dialAttempts     *atomic.Uint64
	dialFailures     *atomic.Uint64
	handshakes       *atomic.Uint64
	dispatches       *atomic.Uint64
	dispatchFailures *atomic.Uint64

	clock  clock.Clock
	ticker *clock.Ticker

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger *zap.Logger
}

func newMonitor(clk clock.Clock, logger *zap.Logger) *monitor {
	m := &monitor{
		dialAttempts:     atomic.NewUint64(0),
		dialFailures:     atomic.NewUint64(0),
		handshakes:       atomic.NewUint64(0),
		dispatches:       atomic.NewUint64(0),
		dispatchFailures: atomic.NewUint64(0),
		clock:            clk,
		ticker:           clk.Ticker(monitorLogInterval),
		stop:             make(chan struct{}),
		logger:           logger,
	}

	m.wg.Add(1)
	go m.run()

	return m
}

func (m *monitor) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case <-m.ticker.C:
			m.logger.Debug("client stats", zap.Object("stats", m.snapshot()))
		}
	}
}

func (m *monitor) snapshot() monitorStats {
	return monitorStats{
		DialAttempts:     m.dialAttempts.Load(),
		DialFailures:     m.dialFailures.Load(),
		Handshakes:       m.handshakes.Load(),
		Dispatches:       m.dispatches.Load(),
		DispatchFailures: m.dispatchFailures.Load(),
	}
}

func (m *monitor) Close() error {
	m.stopOnce.Do(func() {
		m.ticker.Stop()
		close(m.stop)
	})
	m.wg.Wait()
	return nil
}

type monitorStats struct {
	DialAttempts     uint64
	DialFailures     uint64
	Handshakes       uint64
	Dispatches       uint64
	DispatchFailures uint64
}

func (s monitorStats) MarshalLogObject(e zapcore.ObjectEncoder) error {
	e.AddUint64("dial.attempts", s.DialAttempts)
	e.AddUint64("dial.failures", s.DialFailures)
	e.AddUint64("handshakes", s.Handshakes)
	e.AddUint64("dispatch.total", s.Dispatches)
	e.AddUint64("dispatch.failures", s.DispatchFailures)
	return nil
}
