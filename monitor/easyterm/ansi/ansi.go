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

// Package ansi defines ANSI control codes for styles and colours.
package ansi

import (
	"fmt"
	"strings"
)

// ansi colour.
const (
	colBlack   = 0
	colRed     = 1
	colGreen   = 2
	colYellow  = 3
	colBlue    = 4
	colMagenta = 5
	colCyan    = 6
	colWhite   = 7
	colDefault = 9
)

// ansi target.
const (
	targetPen       = 3
	targetBrightPen = 9
)

// Pens is the table of bright colours to be used for text.
var Pens map[string]string

// DimPens is the table of regular colours to be used for text.
var DimPens map[string]string

// NormalPen is the CSI sequence for regular text.
var NormalPen string

// CursorMove is the CSI sequence to move the cursor to row/col (1 based).
func CursorMove(row int, col int) string {
	return fmt.Sprintf("\033[%d;%dH", row, col)
}

// control sequences that don't need to be built.
const (
	ClearScreen = "\033[2J"
	ClearLine   = "\033[2K"
	CursorHide  = "\033[?25l"
	CursorShow  = "\033[?25h"
)

func penSequence(col int, bright bool) string {
	target := targetPen
	if bright {
		target = targetBrightPen
	}
	return fmt.Sprintf("\033[%d%dm", target, col)
}

func init() {
	NormalPen = "\033[0m"

	cols := map[string]int{
		"black":   colBlack,
		"red":     colRed,
		"green":   colGreen,
		"yellow":  colYellow,
		"blue":    colBlue,
		"magenta": colMagenta,
		"cyan":    colCyan,
		"white":   colWhite,
		"default": colDefault,
	}

	Pens = make(map[string]string)
	DimPens = make(map[string]string)
	for name, col := range cols {
		Pens[name] = penSequence(col, true)
		DimPens[name] = penSequence(col, false)
	}
}

// StripSequences removes CSI sequences from the string. Useful when writing
// pen-coloured text to a plain writer.
func StripSequences(s string) string {
	b := strings.Builder{}
	esc := false
	for _, r := range s {
		if esc {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				esc = false
			}
			continue
		}
		if r == '\033' {
			esc = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
