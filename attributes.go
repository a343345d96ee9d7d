// attributes.go: Validated channel attributes and attribute files
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Attribute keys understood by AttributeStore.
const (
	AttrCompression    = "compression_mode"
	AttrArchive        = "archive"
	AttrRotate         = "rotate"
	AttrRotateSize     = "rotate.size"
	AttrRotateInterval = "rotate.interval"
	AttrPurge          = "purge"
	AttrPurgeCount     = "purge.count"
	AttrPurgeAge       = "purge.age"
	AttrChecksum       = "checksum"
	AttrLocalTime      = "timestamp.local"
)

// Rotation modes for the "rotate" attribute.
const (
	RotateNone     = "none"
	RotateSize     = "size"
	RotateInterval = "interval"
)

// Archive modes for the "archive" attribute.
const (
	ArchiveNone      = "none"
	ArchiveNumber    = "number"
	ArchiveTimestamp = "timestamp"
)

// Purge modes for the "purge" attribute.
const (
	PurgeNone  = "none"
	PurgeCount = "count"
	PurgeAge   = "age"
)

// Settings is the typed form of an attribute set. Values are parsed once,
// when the attribute is stored.
type Settings struct {
	Compression    string
	Archive        string
	Rotate         string
	RotateSize     int64 // -1 when unset
	RotateInterval time.Duration
	Purge          string
	PurgeCount     int
	PurgeAge       time.Duration
	Checksum       bool
	LocalTime      bool
}

// DefaultSettings returns the settings of an empty attribute set.
func DefaultSettings() Settings {
	return Settings{
		Compression: CompressionNone,
		Archive:     ArchiveNone,
		Rotate:      RotateNone,
		RotateSize:  -1,
		Purge:       PurgeNone,
	}
}

// AttributeStore holds the validated key/value configuration of one channel.
// Keys are case-sensitive; unknown keys and malformed values are rejected
// by Put with a *ConfigError.
type AttributeStore struct {
	values   map[string]string
	settings Settings
}

// NewAttributeStore returns an empty store carrying the defaults.
func NewAttributeStore() *AttributeStore {
	return &AttributeStore{
		values:   make(map[string]string),
		settings: DefaultSettings(),
	}
}

type attrSetter func(s *Settings, value string) error

func oneOf(allowed ...string) func(string) error {
	return func(v string) error {
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return fmt.Errorf("want one of %s", strings.Join(allowed, "|"))
	}
}

var attrSetters = map[string]attrSetter{
	AttrCompression: func(s *Settings, v string) error {
		if err := oneOf(CompressionNone, CompressionGzip, CompressionBzip2, CompressionZlib, CompressionZstd)(v); err != nil {
			return err
		}
		s.Compression = v
		return nil
	},
	AttrArchive: func(s *Settings, v string) error {
		if err := oneOf(ArchiveNone, ArchiveNumber, ArchiveTimestamp)(v); err != nil {
			return err
		}
		s.Archive = v
		return nil
	},
	AttrRotate: func(s *Settings, v string) error {
		if err := oneOf(RotateNone, RotateSize, RotateInterval)(v); err != nil {
			return err
		}
		s.Rotate = v
		return nil
	},
	AttrRotateSize: func(s *Settings, v string) error {
		n, err := parseSize(v)
		if err != nil {
			return err
		}
		s.RotateSize = n
		return nil
	},
	AttrRotateInterval: func(s *Settings, v string) error {
		d, err := parseInterval(v)
		if err != nil {
			return err
		}
		s.RotateInterval = d
		return nil
	},
	AttrPurge: func(s *Settings, v string) error {
		if err := oneOf(PurgeNone, PurgeCount, PurgeAge)(v); err != nil {
			return err
		}
		s.Purge = v
		return nil
	},
	AttrPurgeCount: func(s *Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errors.New("want a positive integer")
		}
		s.PurgeCount = n
		return nil
	},
	AttrPurgeAge: func(s *Settings, v string) error {
		d, err := ParseDuration(v)
		if err != nil {
			return err
		}
		if d <= 0 {
			return errors.New("want a positive duration")
		}
		s.PurgeAge = d
		return nil
	},
	AttrChecksum: func(s *Settings, v string) error {
		if err := oneOf("none", "sha256")(v); err != nil {
			return err
		}
		s.Checksum = v == "sha256"
		return nil
	},
	AttrLocalTime: func(s *Settings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("want true or false")
		}
		s.LocalTime = b
		return nil
	},
}

// Put validates and stores one attribute.
func (a *AttributeStore) Put(key, value string) error {
	set, ok := attrSetters[key]
	if !ok {
		return configErr(key, value, ErrUnknownAttribute)
	}
	next := a.settings
	if err := set(&next, value); err != nil {
		return configErr(key, value, fmt.Errorf("%w: %v", ErrInvalidValue, err))
	}
	a.settings = next
	a.values[key] = value
	return nil
}

// Get returns the stored value of key, or def when it was never set.
func (a *AttributeStore) Get(key, def string) string {
	if v, ok := a.values[key]; ok {
		return v
	}
	return def
}

// Keys returns the keys that were set, sorted.
func (a *AttributeStore) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Settings returns the typed view of the stored attributes.
func (a *AttributeStore) Settings() Settings {
	return a.settings
}

// Clone returns an independent copy of the store.
func (a *AttributeStore) Clone() *AttributeStore {
	c := &AttributeStore{
		values:   make(map[string]string, len(a.values)),
		settings: a.settings,
	}
	for k, v := range a.values {
		c.values[k] = v
	}
	return c
}

// Format identifies the encoding of an attribute file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// keyDelim keeps dotted attribute names flat inside koanf.
const keyDelim = "::"

// Load parses a YAML or JSON map of attribute keys to scalar values and
// puts every entry. Parameter keys (those containing a dot) are applied
// before the selectors they refine. The store is left untouched on error.
func (a *AttributeStore) Load(data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return configErr("format", string(format), fmt.Errorf("%w: unsupported attribute file format", ErrInvalidValue))
	}

	k := koanf.New(keyDelim)
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return configErr("format", string(format), fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
	}

	keys := k.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		pi, pj := strings.Contains(keys[i], "."), strings.Contains(keys[j], ".")
		if pi != pj {
			return pi
		}
		return keys[i] < keys[j]
	})

	staged := a.Clone()
	for _, key := range keys {
		if err := staged.Put(key, k.String(key)); err != nil {
			return err
		}
	}
	*a = *staged
	return nil
}

// LoadAttributeFile reads an attribute file, detecting the format from its
// extension (.yaml, .yml or .json).
func LoadAttributeFile(path string) (*AttributeStore, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".json":
		format = FormatJSON
	default:
		return nil, configErr("format", path, fmt.Errorf("%w: unknown attribute file extension", ErrInvalidValue))
	}

	data, err := os.ReadFile(path) // #nosec G304 -- attribute file path is supplied by the operator
	if err != nil {
		return nil, fsErr("read", path, err)
	}

	store := NewAttributeStore()
	if err := store.Load(data, format); err != nil {
		return nil, err
	}
	return store, nil
}
