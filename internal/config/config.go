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

// Package config resolves the client configuration snapshot.
//
// Configuration is merged from multiple layers in increasing priority:
// defaults, file and environment discovered settings (only when environment
// loading is enabled), explicit caller settings, plugin contributed
// settings, and finally the forced client-mode flags. The resulting
// snapshot is immutable and shared by every subsystem.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Setting keys understood by the core subsystems. Plugins and callers may
// add arbitrary keys of their own.
const (
	KeyClusterName       = "cluster.name"
	KeyConfigFile        = "config.file"
	KeyConnectTimeout    = "client.connect_timeout"
	KeyReconnectInterval = "client.reconnect_interval"
	KeyShutdownGrace     = "client.shutdown_grace"
	KeyPoolName          = "pool.name"
	KeyPoolSize          = "pool.size"
	KeyPoolQueue         = "pool.queue"
	KeyCompress          = "transport.compress"
	KeyCompressThreshold = "transport.compress_threshold"
	KeyNodeCacheSize     = "registry.node_cache_size"

	// Forced overrides. A transport client never binds a listening socket
	// and never joins the cluster as a member.
	KeyNetworkServer = "network.server"
	KeyNodeClient    = "node.client"
)

const (
	envPrefix  = "seastore"
	configName = "seastore"
)

func defaultSettings() map[string]interface{} {
	return map[string]interface{}{
		KeyClusterName:       "seastore",
		KeyConnectTimeout:    4 * time.Second,
		KeyReconnectInterval: 5 * time.Second,
		KeyShutdownGrace:     10 * time.Second,
		KeyPoolName:          "client",
		KeyPoolSize:          4,
		KeyPoolQueue:         256,
		KeyCompress:          false,
		KeyCompressThreshold: 1024,
		KeyNodeCacheSize:     128,
	}
}

// Environment describes the directories and config file discovered while
// resolving the configuration.
type Environment struct {
	// HomeDir is the seastore home directory, taken from SEASTORE_HOME or
	// falling back to the working directory.
	HomeDir string

	// ConfigDir is the directory searched for the config file.
	ConfigDir string

	// ConfigFile is the path of the config file that was loaded, or empty
	// if none was found.
	ConfigFile string

	// WorkDir is the process working directory.
	WorkDir string
}

// Config is an immutable configuration snapshot. All subsystems read the
// same snapshot; it is never mutated after Resolve returns.
type Config struct {
	v *viper.Viper
}

// Resolve merges the explicit settings with discovered and plugin settings
// into a single snapshot.
//
// When loadFromEnvironment is set the resolver probes for a seastore config
// file and SEASTORE_* environment variables. A config file named explicitly
// via the "config.file" setting must exist and parse; a file probed from
// the search path may be absent but must parse if present.
func Resolve(
	explicit map[string]interface{},
	loadFromEnvironment bool,
	pluginSettings ...map[string]interface{},
) (*Config, *Environment, error) {
	env, err := discoverEnvironment()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	v := viper.New()
	for key, val := range defaultSettings() {
		v.SetDefault(key, val)
	}

	if loadFromEnvironment {
		discovered, configFile, err := loadDiscovered(explicit, env)
		if err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}
		env.ConfigFile = configFile
		if err := v.MergeConfigMap(discovered); err != nil {
			return nil, nil, fmt.Errorf("config: merge discovered: %w", err)
		}
	}

	if err := v.MergeConfigMap(explicit); err != nil {
		return nil, nil, fmt.Errorf("config: merge explicit: %w", err)
	}
	for _, settings := range pluginSettings {
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, nil, fmt.Errorf("config: merge plugin: %w", err)
		}
	}

	// Set has the highest priority in viper so no earlier layer can win.
	v.Set(KeyNetworkServer, false)
	v.Set(KeyNodeClient, true)

	return &Config{v: v}, env, nil
}

func discoverEnvironment() (*Environment, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("work dir: %w", err)
	}

	homeDir := os.Getenv("SEASTORE_HOME")
	if homeDir == "" {
		homeDir = workDir
	}

	configDir := os.Getenv("SEASTORE_CONF_PATH")
	if configDir == "" {
		configDir = filepath.Join(homeDir, "config")
	}

	return &Environment{
		HomeDir:   homeDir,
		ConfigDir: configDir,
		WorkDir:   workDir,
	}, nil
}

// loadDiscovered reads the config file and environment variables into a
// single discovered-settings layer. Environment variables override file
// settings within the layer.
func loadDiscovered(
	explicit map[string]interface{},
	env *Environment,
) (map[string]interface{}, string, error) {
	file := viper.New()

	explicitFile, _ := explicit[KeyConfigFile].(string)
	if explicitFile != "" {
		file.SetConfigFile(explicitFile)
		if err := file.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("read config file %s: %w", explicitFile, err)
		}
	} else {
		file.SetConfigName(configName)
		file.AddConfigPath(env.WorkDir)
		file.AddConfigPath(env.ConfigDir)
		if err := file.ReadInConfig(); err != nil {
			// Only a missing file is tolerated; an unreadable or
			// malformed file fails construction.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, "", fmt.Errorf("read config file: %w", err)
			}
		}
	}

	discovered := map[string]interface{}{}
	for key, val := range file.AllSettings() {
		discovered[key] = val
	}

	envVars := viper.New()
	envVars.SetEnvPrefix(envPrefix)
	envVars.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	envVars.AutomaticEnv()
	for key := range defaultSettings() {
		if val := envVars.Get(key); val != nil {
			discovered[key] = val
		}
	}

	return discovered, file.ConfigFileUsed(), nil
}

func (c *Config) ClusterName() string {
	return c.v.GetString(KeyClusterName)
}

func (c *Config) ConnectTimeout() time.Duration {
	return c.v.GetDuration(KeyConnectTimeout)
}

func (c *Config) ReconnectInterval() time.Duration {
	return c.v.GetDuration(KeyReconnectInterval)
}

func (c *Config) ShutdownGrace() time.Duration {
	return c.v.GetDuration(KeyShutdownGrace)
}

func (c *Config) PoolName() string {
	return c.v.GetString(KeyPoolName)
}

func (c *Config) PoolSize() int {
	return c.v.GetInt(KeyPoolSize)
}

func (c *Config) PoolQueue() int {
	return c.v.GetInt(KeyPoolQueue)
}

func (c *Config) Compress() bool {
	return c.v.GetBool(KeyCompress)
}

func (c *Config) CompressThreshold() int {
	return c.v.GetInt(KeyCompressThreshold)
}

func (c *Config) NodeCacheSize() int {
	return c.v.GetInt(KeyNodeCacheSize)
}

// IsServer reports whether the process binds a listening socket. Always
// false for a transport client.
func (c *Config) IsServer() bool {
	return c.v.GetBool(KeyNetworkServer)
}

// IsClient reports whether the process is a pure client. Always true for a
// transport client.
func (c *Config) IsClient() bool {
	return c.v.GetBool(KeyNodeClient)
}

func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}

func (c *Config) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// Settings returns a copy of the resolved settings. Mutating the returned
// map does not affect the snapshot.
func (c *Config) Settings() map[string]interface{} {
	settings := map[string]interface{}{}
	for key, val := range c.v.AllSettings() {
		settings[key] = val
	}
	return settings
}
