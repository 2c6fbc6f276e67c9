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
	"io"
)

// Plugin extends the client. Plugins contribute settings to the resolved
// configuration and long-lived services that are closed with the client.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Settings returns settings contributed by the plugin. They override
	// explicit caller settings but not the forced client-mode flags.
	Settings() map[string]interface{}

	// Services returns the plugin's lifecycle components. Each is closed
	// best-effort during client shutdown; one service failing to close
	// does not prevent closing the others.
	Services() []io.Closer
}
