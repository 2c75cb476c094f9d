package telemetry

import (
	"encoding/json"
	"time"
)

// #region kinds

// Kind tags how a raw telemetry item was shaped on the wire.
type Kind string

const (
	KindTyped Kind = "typed" // {"type": ..., "payload": {...}}
	KindRaw   Kind = "raw"   // bare payload object
)

// #endregion kinds

// #region event

// Event is one ingested telemetry item. The forgiving wire shapes are
// resolved exactly once, at ingestion, into the canonical Contribution;
// scoring code never branches on optional-field presence.
type Event struct {
	ID           string       `json:"id"`
	Kind         Kind         `json:"kind"`
	Type         string       `json:"type,omitempty"` // typed events only, e.g. "auth_failure"
	RawJSON      string       `json:"raw_json"`       // original payload, kept for audit
	Contribution Contribution `json:"contribution"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Contribution is the canonical feature-contribution record derived from one
// event. Unrecognized shapes contribute zero.
type Contribution struct {
	FailedAuthDelta float64 `json:"failed_auth_delta"`
	AnomalyScore    float64 `json:"anomaly_score"`
}

// #endregion event

// #region wire-shapes

type typedEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type authFailurePayload struct {
	Count   float64 `json:"count"`
	Subject string  `json:"subject"`
}

type anomalyPayload struct {
	Score float64 `json:"score"`
}

type rawPayload struct {
	FailedAuth   bool     `json:"failed_auth"`
	AnomalyScore *float64 `json:"anomaly_score"`
}

// #endregion wire-shapes

// #region resolve

// Resolve parses one wire item into an Event. Items with a "type" field are
// treated as typed envelopes; anything else is a bare payload. Shapes that
// match neither contribute zero rather than failing ingestion.
func Resolve(raw []byte) Event {
	ev := Event{
		Kind:    KindRaw,
		RawJSON: string(raw),
	}

	var env typedEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Type != "" {
		ev.Kind = KindTyped
		ev.Type = env.Type
		ev.Contribution = typedContribution(env)
		return ev
	}

	var bare rawPayload
	if err := json.Unmarshal(raw, &bare); err == nil {
		if bare.FailedAuth {
			ev.Contribution.FailedAuthDelta = 1
		}
		if bare.AnomalyScore != nil {
			ev.Contribution.AnomalyScore = clamp01(*bare.AnomalyScore)
		}
	}
	return ev
}

func typedContribution(env typedEnvelope) Contribution {
	switch env.Type {
	case "auth_failure":
		var p authFailurePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Contribution{}
		}
		if p.Count <= 0 {
			p.Count = 1
		}
		return Contribution{FailedAuthDelta: p.Count}
	case "anomaly":
		var p anomalyPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Contribution{}
		}
		return Contribution{AnomalyScore: clamp01(p.Score)}
	default:
		return Contribution{}
	}
}

// #endregion resolve

// #region helpers

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
