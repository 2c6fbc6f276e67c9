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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Defaults(t *testing.T) {
	cfg, env, err := Resolve(map[string]interface{}{}, false)
	require.NoError(t, err)
	require.NotNil(t, env)

	assert.Equal(t, "seastore", cfg.ClusterName())
	assert.Equal(t, 4*time.Second, cfg.ConnectTimeout())
	assert.Equal(t, 5*time.Second, cfg.ReconnectInterval())
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace())
	assert.Equal(t, 4, cfg.PoolSize())
	assert.False(t, cfg.Compress())
}

func TestResolve_ForcedClientMode(t *testing.T) {
	// Not even explicit settings may turn the client into a server or a
	// cluster member.
	cfg, _, err := Resolve(map[string]interface{}{
		KeyNetworkServer: true,
		KeyNodeClient:    false,
	}, false)
	require.NoError(t, err)

	assert.False(t, cfg.IsServer())
	assert.True(t, cfg.IsClient())
}

func TestResolve_ExplicitOverridesDefaults(t *testing.T) {
	cfg, _, err := Resolve(map[string]interface{}{
		KeyClusterName:    "orders",
		KeyConnectTimeout: "250ms",
	}, false)
	require.NoError(t, err)

	assert.Equal(t, "orders", cfg.ClusterName())
	assert.Equal(t, 250*time.Millisecond, cfg.ConnectTimeout())
}

func TestResolve_PluginOverridesExplicit(t *testing.T) {
	cfg, _, err := Resolve(
		map[string]interface{}{KeyClusterName: "explicit"},
		false,
		map[string]interface{}{KeyClusterName: "plugin"},
	)
	require.NoError(t, err)

	assert.Equal(t, "plugin", cfg.ClusterName())
}

func TestResolve_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seastore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"cluster:\n  name: from-file\npool:\n  size: 7\n",
	), 0o600))

	cfg, env, err := Resolve(map[string]interface{}{
		KeyConfigFile: path,
		// Explicit settings beat the file.
		KeyPoolSize: 9,
	}, true)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.ClusterName())
	assert.Equal(t, 9, cfg.PoolSize())
	assert.Equal(t, path, env.ConfigFile)
}

func TestResolve_ExplicitConfigFileMissing(t *testing.T) {
	_, _, err := Resolve(map[string]interface{}{
		KeyConfigFile: filepath.Join(t.TempDir(), "missing.yaml"),
	}, true)
	require.Error(t, err)
}

func TestResolve_MalformedConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seastore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))

	_, _, err := Resolve(map[string]interface{}{
		KeyConfigFile: path,
	}, true)
	require.Error(t, err)
}

func TestResolve_EnvironmentVariables(t *testing.T) {
	t.Setenv("SEASTORE_CLUSTER_NAME", "from-env")

	cfg, _, err := Resolve(map[string]interface{}{}, true)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ClusterName())

	// Explicit settings beat the environment.
	cfg, _, err = Resolve(map[string]interface{}{
		KeyClusterName: "explicit",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.ClusterName())
}

func TestResolve_EnvironmentIgnoredWhenDisabled(t *testing.T) {
	t.Setenv("SEASTORE_CLUSTER_NAME", "from-env")

	cfg, _, err := Resolve(map[string]interface{}{}, false)
	require.NoError(t, err)
	assert.Equal(t, "seastore", cfg.ClusterName())
}

func TestConfig_SettingsCopy(t *testing.T) {
	cfg, _, err := Resolve(map[string]interface{}{}, false)
	require.NoError(t, err)

	settings := cfg.Settings()
	settings["cluster"] = "mutated"

	assert.Equal(t, "seastore", cfg.ClusterName())
}
