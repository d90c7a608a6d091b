package format

import (
	"encoding/json"

	"github.com/rzbill/killfeed/internal/killmail"
)

// Kind selects a renderer.
type Kind string

const (
	KindCompact Kind = "redisq"
	KindVerbose Kind = "stream"
)

// Render returns the response document for rec in the given kind. A nil rec
// yields the kind's empty shape.
func Render(kind Kind, rec *killmail.Record, loc Locator) any {
	if kind == KindVerbose {
		return Verbose(rec)
	}
	return Compact(rec, loc)
}

// Empty returns the empty document for kind.
func Empty(kind Kind) any {
	if kind == KindVerbose {
		return EmptyEnvelope()
	}
	return EmptyPackage()
}

// Marshal renders rec to JSON. Rendering never fails for well-formed
// records; on an encoding error the empty shape is returned alongside err.
func Marshal(kind Kind, rec *killmail.Record, loc Locator) ([]byte, error) {
	b, err := json.Marshal(Render(kind, rec, loc))
	if err != nil {
		empty, _ := json.Marshal(Empty(kind))
		return empty, err
	}
	return b, nil
}
