// This file is part of Breadbox.
//
// Breadbox is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Breadbox is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Breadbox.  If not, see <https://www.gnu.org/licenses/>.

// Package statsview runs a local HTTP server offering runtime statistics
// for the emulation process. It is only built when the statsview build
// constraint is present; without it the Launch() function is a no-op and
// Available() reports false, so the --stats flag can exist unconditionally.
//
// The charts are most useful for watching allocation churn while the
// fast-forward heuristic is engaged: a long measurement run should settle
// to a flat heap profile once every wait loop in the firmware has been
// recognised. Underlying functionality is provided by
// "github.com/go-echarts/statsview".
//
// After launch, graphical statistics are viewable at:
//
//	localhost:12328/debug/statsview
//
// And standard Go pprof statistics at:
//
//	localhost:12328/debug/pprof/
package statsview
