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

package logger

import (
	"io"
	"strings"

	"github.com/hexbench/breadbox/monitor/easyterm/ansi"
)

// Colorizer applies basic colouring rules to logging output. The tag part of
// an entry is dimmed, leaving the detail in the terminal's normal pen.
type Colorizer struct {
	out io.Writer
}

// NewColorizer is the preferred method of initialisation for the Colorizer
// type.
func NewColorizer(out io.Writer) Colorizer {
	return Colorizer{out: out}
}

// Write implements the io.Writer interface.
func (c Colorizer) Write(p []byte) (n int, err error) {
	s := string(p)

	tag, detail, ok := strings.Cut(s, ": ")
	if !ok {
		return c.out.Write(p)
	}

	b := strings.Builder{}
	b.WriteString(ansi.DimPens["cyan"])
	b.WriteString(tag)
	b.WriteString(ansi.NormalPen)
	b.WriteString(": ")
	b.WriteString(detail)

	_, err = c.out.Write([]byte(b.String()))

	// the number of bytes "written" is the length of the original slice. the
	// pen sequences are invisible to the caller
	return len(p), err
}
