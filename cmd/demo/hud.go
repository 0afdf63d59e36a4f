package main

import (
	"fmt"
	"strings"
)

// DebugOverlay collects status fields shown in the window title.
type DebugOverlay struct {
	lines []string
}

func (do *DebugOverlay) AddLine(format string, args ...any) {
	do.lines = append(do.lines, fmt.Sprintf(format, args...))
}

func (do *DebugOverlay) Clear() {
	do.lines = do.lines[:0]
}

func (do *DebugOverlay) Text() string {
	return strings.Join(do.lines, " | ")
}
