// Package logfields holds canonical slog attribute keys so that every
// package logs training progress and checkpoint events the same way.
package logfields

import (
	"log/slog"
	"strings"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyAlgorithm           = "algorithm"
	KeyAlgorithms          = "algorithms"
	KeyControllerID        = "controller_id"
	KeyStep                = "step"
	KeyEpoch               = "epoch"
	KeyInitKind            = "init_kind"
	KeyLayer               = "layer"
	KeyCount               = "count"
	KeyUnmatchedInSnapshot = "unmatched_in_snapshot"
	KeyUnmatchedInModel    = "unmatched_in_model"
	KeyError               = "error"
	KeyBits                = "bits"
	KeyLevel               = "level"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Algorithm(name string) slog.Attr   { return slog.String(KeyAlgorithm, name) }
func ControllerID(id string) slog.Attr  { return slog.String(KeyControllerID, id) }
func Step(step int) slog.Attr           { return slog.Int(KeyStep, step) }
func Epoch(epoch int) slog.Attr         { return slog.Int(KeyEpoch, epoch) }
func InitKind(kind string) slog.Attr    { return slog.String(KeyInitKind, kind) }
func Layer(path string) slog.Attr       { return slog.String(KeyLayer, path) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func Bits(n int) slog.Attr              { return slog.Int(KeyBits, n) }
func Level(v float64) slog.Attr         { return slog.Float64(KeyLevel, v) }
func Algorithms(names []string) slog.Attr {
	return slog.String(KeyAlgorithms, strings.Join(names, ","))
}

// UnmatchedInSnapshot lists every identifier, never just a count.
func UnmatchedInSnapshot(ids []string) slog.Attr {
	return slog.Any(KeyUnmatchedInSnapshot, ids)
}

// UnmatchedInModel lists every identifier, never just a count.
func UnmatchedInModel(ids []string) slog.Attr {
	return slog.Any(KeyUnmatchedInModel, ids)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
