package chess

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	finalPositionName = "final_position"
	movePrefix        = "move_"
)

// Naming maps a 1-based snapshot index to an output base name (no extension).
type Naming interface {
	Name(index int) string
}

type NamingFunc func(index int) string

func (f NamingFunc) Name(index int) string { return f(index) }

func SingleName(name string) Naming {
	return NamingFunc(func(int) string { return name })
}

func FinalPosition() Naming { return SingleName(finalPositionName) }

func PerMove() Naming {
	return NamingFunc(func(index int) string { return fmt.Sprintf("%s%d", movePrefix, index) })
}

// BatchBase names folder-batch outputs after the input file: "game1" for the
// final position, "game1_move_3" per move.
func BatchBase(base string, finalOnly bool) Naming {
	if finalOnly {
		return SingleName(base)
	}
	return NamingFunc(func(index int) string { return fmt.Sprintf("%s_%s%d", base, movePrefix, index) })
}

// PGNNaming is the naming used for a single PGN input.
func PGNNaming(finalOnly bool) Naming {
	if finalOnly {
		return FinalPosition()
	}
	return PerMove()
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
