package shada

import "log/slog"

// Defaults mirror the documented defaults in spec.md §3/§7: a 10KiB
// per-record size cap, per-history ring sizes, a cap on the number of
// files whose marks are saved, a line cap on saved register contents,
// and a fixed-size jump list.
const (
	DefaultMaxKbyte        = 10
	DefaultHistoryCmd      = 50
	DefaultHistorySearch   = 50
	DefaultHistoryExpr     = 50
	DefaultHistoryInput    = 50
	DefaultHistoryDebug    = 50
	DefaultNumMarkedFiles  = 100
	DefaultMaxRegLines     = 100
	DefaultJumplistSize    = 100
	DefaultChangelistSize  = 100
	numberedMarkCount      = 10 // '0'-'9'
)

// RecordMask selects which record types a Read/Write call should act on,
// one bit per RecordType. srniAll enables every known type.
type RecordMask uint16

func maskBit(t RecordType) RecordMask { return 1 << RecordMask(t) }

var srniAll = func() RecordMask {
	var m RecordMask
	for t := RecTypeHeader; t <= recTypeMax; t++ {
		m |= maskBit(t)
	}
	return m
}()

func (m RecordMask) has(t RecordType) bool { return m&maskBit(t) != 0 }

// Config bundles the tunables shared by Read and Write: the per-category
// bounds and the hash algorithm the mergers use for internal dedup maps.
type Config struct {
	MaxKbyte       uint64
	HistoryLen     [numHistoryKinds]int
	NumMarkedFiles int
	MaxRegLines    int
	JumplistSize   int
	ChangelistSize int
	Hash           HashAlgorithm
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxKbyte: DefaultMaxKbyte,
		HistoryLen: [numHistoryKinds]int{
			HistCmd:    DefaultHistoryCmd,
			HistSearch: DefaultHistorySearch,
			HistExpr:   DefaultHistoryExpr,
			HistInput:  DefaultHistoryInput,
			HistDebug:  DefaultHistoryDebug,
		},
		NumMarkedFiles: DefaultNumMarkedFiles,
		MaxRegLines:    DefaultMaxRegLines,
		JumplistSize:   DefaultJumplistSize,
		ChangelistSize: DefaultChangelistSize,
		Hash:           HashXXH3,
	}
}

// ReadOptions controls a single Read call.
type ReadOptions struct {
	Config
	Mask RecordMask // defaults to srniAll when zero
	// Force, when true, makes Read overwrite in-memory state for every
	// category present on disk instead of only where the file's entry
	// is newer than the editor's (the `!` variant of :rshada).
	Force bool
	// Logger receives warnings about recoverable problems encountered
	// while reading (a not-ShaDa stream, a truncated trailing record).
	// Defaults to slog.Default() when nil.
	Logger *slog.Logger
}

func (o ReadOptions) mask() RecordMask {
	if o.Mask == 0 {
		return srniAll
	}
	return o.Mask
}

func (o ReadOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// WriteOptions controls a single Write call.
type WriteOptions struct {
	Config
	Mask RecordMask
	// Force, when true, writes the editor's current state for every
	// category even if merging with the previous file would have kept
	// the file's version (the `!` variant of :wshada).
	Force bool
	// Logger receives warnings about recoverable problems encountered
	// while writing (a not-ShaDa previous file, a target that could not
	// be renamed over). Defaults to slog.Default() when nil.
	Logger *slog.Logger
}

func (o WriteOptions) mask() RecordMask {
	if o.Mask == 0 {
		return srniAll
	}
	return o.Mask
}

func (o WriteOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
