// channel.go: Channel contract and the message carrier
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"fmt"
	"strings"
)

// Channel is a log message sink. FileChannel is one implementation;
// AsyncChannel queues messages in front of any other.
type Channel interface {
	// Open acquires the resources the channel writes to.
	Open() error

	// Close releases them. Closing a closed channel is a no-op.
	Close() error

	// Log delivers one message to the sink.
	Log(msg Message) error
}

// Priority is the severity of a message, ordered from least to most severe.
type Priority int

const (
	PriorityTrace Priority = iota
	PriorityDebug
	PriorityInfo
	PriorityNotice
	PriorityWarning
	PriorityError
	PriorityCritical
	PriorityFatal
)

var priorityNames = [...]string{
	PriorityTrace:    "TRACE",
	PriorityDebug:    "DEBUG",
	PriorityInfo:     "INFO",
	PriorityNotice:   "NOTICE",
	PriorityWarning:  "WARNING",
	PriorityError:    "ERROR",
	PriorityCritical: "CRITICAL",
	PriorityFatal:    "FATAL",
}

// String returns the upper-case name of the priority.
func (p Priority) String() string {
	if p < PriorityTrace || p > PriorityFatal {
		return fmt.Sprintf("PRIORITY(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority converts a case-insensitive priority name ("info", "WARN",
// "warning", ...) to a Priority.
func ParsePriority(s string) (Priority, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARN" {
		return PriorityWarning, nil
	}
	for p, n := range priorityNames {
		if n == name {
			return Priority(p), nil
		}
	}
	return PriorityInfo, fmt.Errorf("unknown priority %q", s)
}

// Message is a single log record handed to a Channel.
// FileChannel only writes Text; Source and Priority are carried for
// front ends that filter or format.
type Message struct {
	Source   string
	Text     string
	Priority Priority
}

// NewMessage builds a Message.
func NewMessage(source, text string, prio Priority) Message {
	return Message{Source: source, Text: text, Priority: prio}
}
