// Package extensions provides ready-made consumers for the reactive
// runtime's telemetry hooks: structured logging, dependency-graph
// inspection, and metrics. Each installer wraps the previously installed
// hooks and returns an uninstall function that restores them.
package extensions

import (
	"github.com/rs/zerolog"

	reactive "github.com/reactive-fn/reactive-go"
)

// InstallLogging logs every entity creation at debug level and every
// computation error at error level through the given zerolog logger.
func InstallLogging(logger zerolog.Logger) (uninstall func()) {
	var prevCreate reactive.CreationHook
	prevCreate = reactive.SetCreationHook(func(rec reactive.CreationRecord) {
		logger.Debug().
			Str("kind", string(rec.Kind)).
			Str("key", rec.Key).
			Int("metadata", len(rec.Metadata)).
			Msg("entity created")
		if prevCreate != nil {
			prevCreate(rec)
		}
	})

	var prevErr reactive.ErrorHook
	prevErr = reactive.SetErrorHook(func(rec reactive.ErrorRecord) {
		logger.Error().
			Err(rec.Err).
			Str("source", sourceName(rec.Source)).
			Msg("computation error")
		if prevErr != nil {
			prevErr(rec)
		}
	})

	return func() {
		reactive.SetCreationHook(prevCreate)
		reactive.SetErrorHook(prevErr)
	}
}

func sourceName(source any) string {
	if cell, ok := source.(reactive.AnyCell); ok && cell.Key() != "" {
		return cell.Key()
	}
	if keyed, ok := source.(interface{ Key() string }); ok && keyed.Key() != "" {
		return keyed.Key()
	}
	return "unnamed"
}
