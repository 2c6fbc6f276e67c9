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
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

type options struct {
	settings        map[string]interface{}
	loadEnvironment bool
	connectTimeout  time.Duration
	plugins         []Plugin
	logger          *zap.Logger
	clock           clock.Clock
}

func defaultOptions() *options {
	return &options{
		settings:        map[string]interface{}{},
		loadEnvironment: true,
		logger:          zap.NewNop(),
		clock:           clock.New(),
	}
}

type Option interface {
	apply(*options)
}

type settingsOption struct {
	settings map[string]interface{}
}

func (o settingsOption) apply(opts *options) {
	for k, v := range o.settings {
		opts.settings[k] = v
	}
}

// WithSettings supplies explicit settings. Explicit settings override
// settings discovered from the environment but are overridden by plugin
// contributed settings and the forced client-mode flags.
func WithSettings(settings map[string]interface{}) Option {
	return settingsOption{settings: settings}
}

type environmentConfigOption struct {
	load bool
}

func (o environmentConfigOption) apply(opts *options) {
	opts.loadEnvironment = o.load
}

// WithEnvironmentConfig controls whether the client loads settings from
// the seastore config file and SEASTORE_* environment variables.
//
// Defaults to true.
func WithEnvironmentConfig(load bool) Option {
	return environmentConfigOption{load: load}
}

type connectTimeoutOption struct {
	timeout time.Duration
}

func (o connectTimeoutOption) apply(opts *options) {
	opts.connectTimeout = o.timeout
}

// WithConnectTimeout is the timeout for each connection attempt to a
// listed address. Shorthand for the "client.connect_timeout" setting.
//
// Defaults to 4 seconds.
func WithConnectTimeout(timeout time.Duration) Option {
	return connectTimeoutOption{timeout: timeout}
}

type pluginsOption struct {
	plugins []Plugin
}

func (o pluginsOption) apply(opts *options) {
	opts.plugins = append(opts.plugins, o.plugins...)
}

// WithPlugins registers plugins. Plugin settings are merged into the
// configuration snapshot and plugin services are closed with the client.
func WithPlugins(plugins ...Plugin) Option {
	return pluginsOption{plugins: plugins}
}

type loggerOption struct {
	logger *zap.Logger
}

func (o loggerOption) apply(opts *options) {
	opts.logger = o.logger
}

func WithLogger(logger *zap.Logger) Option {
	return loggerOption{logger: logger}
}

type clockOption struct {
	clock clock.Clock
}

func (o clockOption) apply(opts *options) {
	opts.clock = o.clock
}

// WithClock replaces the clock driving background reconnection. Used in
// tests to control the reconnect timer.
func WithClock(c clock.Clock) Option {
	return clockOption{clock: c}
}
