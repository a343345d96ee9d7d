// rotation.go: Rotation policies
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import "time"

// ChannelState is the bookkeeping a RotationPolicy decides on. It is taken
// after the triggering write has been counted.
type ChannelState struct {
	CurrentSize    int64
	RotationAnchor time.Time
	Now            time.Time
}

// RotationPolicy decides whether the current file must be rotated.
// It is evaluated once per write, after the write.
type RotationPolicy interface {
	ShouldRotate(state ChannelState) bool
}

type noRotation struct{}

func (noRotation) ShouldRotate(ChannelState) bool { return false }

// NoRotation never rotates.
func NoRotation() RotationPolicy { return noRotation{} }

// SizeRotation rotates once the current file holds at least Threshold
// logical bytes. Because it runs after the write, a file may exceed the
// threshold by at most one message.
type SizeRotation struct {
	Threshold int64
}

// ShouldRotate implements RotationPolicy.
func (p SizeRotation) ShouldRotate(state ChannelState) bool {
	return state.CurrentSize >= p.Threshold
}

// IntervalRotation rotates once Period has elapsed since the current file
// was opened or last rotated.
type IntervalRotation struct {
	Period time.Duration
}

// ShouldRotate implements RotationPolicy.
func (p IntervalRotation) ShouldRotate(state ChannelState) bool {
	return state.Now.Sub(state.RotationAnchor) >= p.Period
}

// rotationPolicyFor builds the policy selected by s. A size or interval
// mode whose parameter is still unset never fires.
func rotationPolicyFor(s Settings) RotationPolicy {
	switch s.Rotate {
	case RotateSize:
		if s.RotateSize >= 0 {
			return SizeRotation{Threshold: s.RotateSize}
		}
	case RotateInterval:
		if s.RotateInterval > 0 {
			return IntervalRotation{Period: s.RotateInterval}
		}
	}
	return noRotation{}
}
