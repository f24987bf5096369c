// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"time"
)

// ModeRecord wraps a mode value (a channel setting, a list mask) with the
// arguments it was set with, who set it and when. Records are replaced, not
// mutated.
type ModeRecord[F any] struct {
	Flag      F
	Args      []string
	UpdatedBy string
	UpdatedAt time.Time
}

// NewModeRecord builds a record stamped with the current time.
func NewModeRecord[F any](flag F, updatedBy string, args ...string) ModeRecord[F] {
	return ModeRecord[F]{
		Flag:      flag,
		Args:      args,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now().UTC(),
	}
}
