// Package engine defines the inbound event vocabulary of the host game
// engine: the closed set of event kinds grimoire knows how to mirror, and
// the wire record they arrive in. The package is a pure data model; all
// interpretation lives in internal/mirror.
package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the category of a host engine event. The set is closed; feeds
// may still deliver kinds newer than this build, which dispatch treats as
// counted no-ops rather than errors.
type Kind string

const (
	// Game and turn structure events
	KindGameStarted    Kind = "GAME_STARTED"
	KindGameEnded      Kind = "GAME_ENDED"
	KindTurnStarted    Kind = "TURN_STARTED"
	KindPhaseChanged   Kind = "PHASE_CHANGED"
	KindStepChanged    Kind = "STEP_CHANGED"
	KindPriorityPassed Kind = "PRIORITY_PASSED"

	// Zone and library events
	KindZoneChanged     Kind = "ZONE_CHANGED"
	KindCardDrawn       Kind = "CARD_DRAWN"
	KindCardDiscarded   Kind = "CARD_DISCARDED"
	KindCardMilled      Kind = "CARD_MILLED"
	KindCardExiled      Kind = "CARD_EXILED"
	KindCardRevealed    Kind = "CARD_REVEALED"
	KindLibraryShuffled Kind = "LIBRARY_SHUFFLED"
	KindLibrarySearched Kind = "LIBRARY_SEARCHED"

	// Permanent events
	KindPermanentEntered     Kind = "PERMANENT_ENTERED"
	KindPermanentLeft        Kind = "PERMANENT_LEFT"
	KindPermanentTapped      Kind = "PERMANENT_TAPPED"
	KindPermanentUntapped    Kind = "PERMANENT_UNTAPPED"
	KindPermanentDestroyed   Kind = "PERMANENT_DESTROYED"
	KindPermanentSacrificed  Kind = "PERMANENT_SACRIFICED"
	KindPermanentRegenerated Kind = "PERMANENT_REGENERATED"
	KindPermanentTransformed Kind = "PERMANENT_TRANSFORMED"
	KindPermanentAttached    Kind = "PERMANENT_ATTACHED"
	KindPermanentUnattached  Kind = "PERMANENT_UNATTACHED"
	KindControlGained        Kind = "CONTROL_GAINED"
	KindControlLost          Kind = "CONTROL_LOST"
	KindTokenCreated         Kind = "TOKEN_CREATED"

	// Counter events
	KindCounterAdded   Kind = "COUNTER_ADDED"
	KindCounterRemoved Kind = "COUNTER_REMOVED"

	// Damage and life events
	KindDamageDealt   Kind = "DAMAGE_DEALT"
	KindPlayerDamaged Kind = "PLAYER_DAMAGED"
	KindLifeGained    Kind = "LIFE_GAINED"
	KindLifeLost      Kind = "LIFE_LOST"
	KindLifeSet       Kind = "LIFE_SET"

	// Combat events
	KindAttackerDeclared  Kind = "ATTACKER_DECLARED"
	KindBlockerDeclared   Kind = "BLOCKER_DECLARED"
	KindRemovedFromCombat Kind = "REMOVED_FROM_COMBAT"

	// Spell and ability events
	KindSpellCast        Kind = "SPELL_CAST"
	KindSpellCountered   Kind = "SPELL_COUNTERED"
	KindAbilityActivated Kind = "ABILITY_ACTIVATED"
	KindAbilityTriggered Kind = "ABILITY_TRIGGERED"
	KindManaAdded        Kind = "MANA_ADDED"

	// Player events
	KindMulliganTaken Kind = "MULLIGAN_TAKEN"
	KindPlayerLost    Kind = "PLAYER_LOST"
	KindPlayerWon     Kind = "PLAYER_WON"
	KindCoinFlipped   Kind = "COIN_FLIPPED"
	KindDieRolled     Kind = "DIE_ROLLED"
)

// Kinds lists every event kind this build understands, in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindGameStarted, KindGameEnded, KindTurnStarted, KindPhaseChanged,
		KindStepChanged, KindPriorityPassed,
		KindZoneChanged, KindCardDrawn, KindCardDiscarded, KindCardMilled,
		KindCardExiled, KindCardRevealed, KindLibraryShuffled, KindLibrarySearched,
		KindPermanentEntered, KindPermanentLeft, KindPermanentTapped,
		KindPermanentUntapped, KindPermanentDestroyed, KindPermanentSacrificed,
		KindPermanentRegenerated, KindPermanentTransformed, KindPermanentAttached,
		KindPermanentUnattached, KindControlGained, KindControlLost, KindTokenCreated,
		KindCounterAdded, KindCounterRemoved,
		KindDamageDealt, KindPlayerDamaged, KindLifeGained, KindLifeLost, KindLifeSet,
		KindAttackerDeclared, KindBlockerDeclared, KindRemovedFromCombat,
		KindSpellCast, KindSpellCountered, KindAbilityActivated,
		KindAbilityTriggered, KindManaAdded,
		KindMulliganTaken, KindPlayerLost, KindPlayerWon, KindCoinFlipped, KindDieRolled,
	}
}

// Known reports whether k is part of this build's vocabulary
func (k Kind) Known() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Absolute reports whether events of this kind carry an absolute value
// rather than a delta. Absolute values are checked against the mirrored
// state for divergence before they are applied.
func (k Kind) Absolute() bool {
	return k == KindLifeSet
}

// Event is one host engine event as it arrives on a feed. Fields beyond
// Kind are populated per kind; absent fields are zero. ObjectID names the
// external object the event concerns in the host engine's id space, which
// grimoire reuses as instance ids.
type Event struct {
	Kind       Kind           `json:"kind"`
	ID         string         `json:"id,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	ObjectName string         `json:"object_name,omitempty"`
	SourceID   string         `json:"source_id,omitempty"`
	PlayerID   string         `json:"player_id,omitempty"`
	PlayerName string         `json:"player_name,omitempty"`
	Amount     int64          `json:"amount,omitempty"`
	Flag       bool           `json:"flag,omitempty"`
	FromZone   string         `json:"from_zone,omitempty"`
	ToZone     string         `json:"to_zone,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// New creates an event of the given kind about one external object
func New(kind Kind, objectID string) Event {
	return Event{Kind: kind, ObjectID: objectID, Timestamp: time.Now().UTC()}
}

// WithPlayer returns a copy of the event attributed to a player
func (e Event) WithPlayer(id, name string) Event {
	e.PlayerID = id
	e.PlayerName = name
	return e
}

// WithAmount returns a copy of the event carrying a numeric amount
func (e Event) WithAmount(amount int64) Event {
	e.Amount = amount
	return e
}

// WithZones returns a copy of the event carrying a zone transition
func (e Event) WithZones(from, to string) Event {
	e.FromZone = from
	e.ToZone = to
	return e
}

// WithPayload returns a copy of the event with one payload entry added
func (e Event) WithPayload(key string, value any) Event {
	p := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		p[k] = v
	}
	p[key] = value
	e.Payload = p
	return e
}

// Decode parses one JSON-encoded event. An event without a kind is
// rejected; an unknown kind is not, so newer feeds still decode.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	if ev.Kind == "" {
		return Event{}, fmt.Errorf("event has no kind")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev, nil
}

// String renders a short human-readable summary for logs
func (e Event) String() string {
	switch {
	case e.ObjectID != "" && e.Amount != 0:
		return fmt.Sprintf("%s object=%s amount=%d", e.Kind, e.ObjectID, e.Amount)
	case e.ObjectID != "":
		return fmt.Sprintf("%s object=%s", e.Kind, e.ObjectID)
	case e.PlayerID != "":
		return fmt.Sprintf("%s player=%s", e.Kind, e.PlayerID)
	}
	return string(e.Kind)
}
