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

// Package curated is a helper package for the plain error type. Curated
// errors are created with the Errorf() function and tested with the Is() and
// Has() functions, using the pattern string as the error's identity.
//
// Breadbox uses curated errors for every error that crosses a package
// boundary. The emulation core itself recovers from bad input locally and
// logs rather than errors; curated errors are for genuine failures (bad
// construction arguments, script problems, and so on).
package curated
