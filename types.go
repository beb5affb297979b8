package sealfs

import (
	"go.uber.org/zap"
)

// EncryptMode selects how the container keys are obtained.
type EncryptMode uint8

const (
	// EncryptUserKey derives every key from a caller-supplied 128-bit key.
	EncryptUserKey EncryptMode = iota
	// EncryptAutoKey obtains the metadata key from a KeySealer.
	EncryptAutoKey
	// IntegrityOnly stores content in the clear but authenticates every
	// node with a GCM tag over its bytes.
	IntegrityOnly
)

// String returns the string representation of the encrypt mode
func (m EncryptMode) String() string {
	switch m {
	case EncryptUserKey:
		return "user-key"
	case EncryptAutoKey:
		return "auto-key"
	case IntegrityOnly:
		return "integrity-only"
	default:
		return "unknown"
	}
}

// OpenOptions mirrors the C fopen access modes. Exactly one of Read,
// Write or Append must be set.
type OpenOptions struct {
	Read   bool // open existing, fail if absent
	Write  bool // create, truncating any existing container
	Append bool // create if absent, position writes at end of file
	Update bool // "+": allow both reading and writing
	Binary bool // "b": accepted for compatibility, no effect
}

func (o OpenOptions) check() error {
	n := 0
	if o.Read {
		n++
	}
	if o.Write {
		n++
	}
	if o.Append {
		n++
	}
	if n != 1 {
		return NewValidationError("OpenOptions", o, "exactly one of Read, Write or Append must be set")
	}
	return nil
}

// readonly reports whether the file admits no writes at all.
func (o OpenOptions) readonly() bool {
	return o.Read && !o.Update
}

// ParseMode parses a C-style fopen mode string such as "r", "w+b" or
// "a+". The first character selects the access mode; "+" and "b" may
// each appear at most once.
func ParseMode(mode string) (OpenOptions, error) {
	var o OpenOptions
	if len(mode) == 0 || len(mode) > 5 {
		return o, NewValidationError("mode", mode, "mode string must be 1 to 5 characters")
	}
	switch mode[0] {
	case 'r':
		o.Read = true
	case 'w':
		o.Write = true
	case 'a':
		o.Append = true
	default:
		return OpenOptions{}, NewValidationError("mode", mode, "mode must start with r, w or a")
	}
	for _, c := range mode[1:] {
		switch c {
		case '+':
			if o.Update {
				return OpenOptions{}, NewValidationError("mode", mode, "duplicate '+' flag")
			}
			o.Update = true
		case 'b':
			if o.Binary {
				return OpenOptions{}, NewValidationError("mode", mode, "duplicate 'b' flag")
			}
			o.Binary = true
		default:
			return OpenOptions{}, NewValidationError("mode", mode, "unknown mode character")
		}
	}
	return o, nil
}

// FileStatus tracks the health of an open protected file. Every state
// other than StatusOK rejects normal operations; see ClearError for
// which states are recoverable.
type FileStatus uint8

const (
	StatusNotInitialized FileStatus = iota
	StatusOK
	StatusFlushError
	StatusWriteToDiskFailed
	StatusCryptoError
	StatusCorrupted
	StatusMemoryCorrupted
	StatusClosed
)

// String returns the string representation of the file status
func (s FileStatus) String() string {
	switch s {
	case StatusNotInitialized:
		return "not-initialized"
	case StatusOK:
		return "ok"
	case StatusFlushError:
		return "flush-error"
	case StatusWriteToDiskFailed:
		return "write-to-disk-failed"
	case StatusCryptoError:
		return "crypto-error"
	case StatusCorrupted:
		return "corrupted"
	case StatusMemoryCorrupted:
		return "memory-corrupted"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s FileStatus) ok() bool { return s == StatusOK }

// Config contains configuration for opening a protected file
type Config struct {
	// Mode selects the protection scheme
	Mode EncryptMode

	// Key is the user key for EncryptUserKey mode
	Key Key

	// Sealer supplies metadata keys for EncryptAutoKey mode
	Sealer KeySealer

	// CachePages is the target number of resident nodes. Defaults to 48.
	// The cache can exceed this transiently when every resident node is
	// dirty.
	CachePages int

	// Logger receives structured events. Defaults to zap.NewNop().
	Logger *zap.Logger
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	switch c.Mode {
	case EncryptUserKey:
		if c.Key == (Key{}) {
			return NewValidationError("Key", nil, "user key must not be all zero")
		}
	case EncryptAutoKey:
		if c.Sealer == nil {
			return NewValidationError("Sealer", nil, "auto-key mode requires a key sealer")
		}
	case IntegrityOnly:
	default:
		return NewValidationError("Mode", c.Mode, "unknown encrypt mode")
	}
	if c.CachePages < 0 {
		return NewValidationError("CachePages", c.CachePages, "cache size must not be negative")
	}
	return nil
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.CachePages == 0 {
		out.CachePages = maxCachePages
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return &out
}
