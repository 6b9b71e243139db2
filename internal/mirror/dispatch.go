package mirror

import (
	"fmt"

	"grimoire/internal/domain"
	"grimoire/internal/engine"
	"grimoire/internal/verb"
)

// dispatch maps one event kind to its mutation. Kinds with no mapping
// fall through to the no-op default and count as ignored; adding a
// mapping is one new case.
func (m *Mirror) dispatch(source string, ev engine.Event) (bool, error) {
	switch ev.Kind {
	case engine.KindGameStarted:
		return true, m.onGameStarted(ev)
	case engine.KindGameEnded:
		return true, m.onGameEnded(ev)
	case engine.KindTurnStarted:
		return true, m.onTurnStarted(ev)
	case engine.KindPhaseChanged:
		return true, m.onMarkerChanged(ev, "phase")
	case engine.KindStepChanged:
		return true, m.onMarkerChanged(ev, "step")

	case engine.KindZoneChanged:
		return true, m.onZoneChanged(ev)
	case engine.KindCardDrawn:
		return true, m.onCardToZone(ev, "hand")
	case engine.KindCardDiscarded, engine.KindCardMilled:
		return true, m.onCardToZone(ev, "graveyard")
	case engine.KindCardExiled:
		return true, m.onCardToZone(ev, "exile")
	case engine.KindCardRevealed:
		return true, m.onCardRevealed(ev)

	case engine.KindPermanentEntered:
		return true, m.onPermanentEntered(ev)
	case engine.KindPermanentLeft:
		return true, m.onPermanentLeft(ev)
	case engine.KindPermanentTapped:
		return true, m.onTapped(ev)
	case engine.KindPermanentUntapped:
		return true, m.onUntapped(ev)
	case engine.KindPermanentDestroyed:
		return true, m.onDestroyed(ev)
	case engine.KindPermanentSacrificed:
		return true, m.onCardToZone(ev, "graveyard")
	case engine.KindPermanentRegenerated:
		return true, m.onRegenerated(ev)
	case engine.KindPermanentTransformed:
		return true, m.onTransformed(ev)
	case engine.KindPermanentAttached:
		return true, m.onAttached(ev)
	case engine.KindPermanentUnattached:
		return true, m.onUnattached(ev)
	case engine.KindControlGained:
		return true, m.onControlGained(ev)
	case engine.KindControlLost:
		return true, m.onControlLost(ev)
	case engine.KindTokenCreated:
		return true, m.onTokenCreated(ev)

	case engine.KindCounterAdded:
		return true, m.onCounter(source, ev, 1)
	case engine.KindCounterRemoved:
		return true, m.onCounter(source, ev, -1)

	case engine.KindDamageDealt:
		return true, m.onDamageDealt(ev)
	case engine.KindPlayerDamaged:
		return true, m.onLifeDelta(ev, -ev.Amount)
	case engine.KindLifeGained:
		return true, m.onLifeDelta(ev, ev.Amount)
	case engine.KindLifeLost:
		return true, m.onLifeDelta(ev, -ev.Amount)
	case engine.KindLifeSet:
		return true, m.onLifeSet(source, ev)

	case engine.KindAttackerDeclared:
		return true, m.onAttackerDeclared(ev)
	case engine.KindBlockerDeclared:
		return true, m.onBlockerDeclared(ev)
	case engine.KindRemovedFromCombat:
		return true, m.onRemovedFromCombat(ev)

	case engine.KindSpellCast:
		return true, m.onSpellCast(ev)
	case engine.KindSpellCountered:
		return true, m.onCardToZone(ev, "graveyard")
	case engine.KindManaAdded:
		return true, m.onManaAdded(ev)

	case engine.KindMulliganTaken:
		return true, m.onMulliganTaken(ev)
	case engine.KindPlayerLost:
		return true, m.onPlayerFlag(ev, "lost")
	case engine.KindPlayerWon:
		return true, m.onPlayerWon(ev)

	default:
		return false, nil
	}
}

func (m *Mirror) onGameStarted(ev engine.Event) error {
	game, _, err := m.ensureGame(ev)
	if err != nil {
		return err
	}
	m.game.Store(game.ID())
	return m.write(game, map[string]any{"started": true, "ended": false})
}

func (m *Mirror) onGameEnded(ev engine.Event) error {
	game, _, err := m.ensureGame(ev)
	if err != nil {
		return err
	}
	values := map[string]any{"ended": true}
	if ev.PlayerName != "" {
		values["winner"] = ev.PlayerName
	}
	return m.write(game, values)
}

func (m *Mirror) onTurnStarted(ev engine.Event) error {
	game, _, err := m.ensureGame(ev)
	if err != nil {
		return err
	}
	values := map[string]any{}
	if ev.Amount > 0 {
		values["turn"] = ev.Amount
	}
	if player, ok := m.resolvePlayer(ev.PlayerID, ev.PlayerName); ok {
		values["active_player"] = player.ID()
	} else if ev.PlayerID != "" {
		values["active_player"] = ev.PlayerID
	}
	if len(values) == 0 {
		return nil
	}
	return m.write(game, values)
}

// onMarkerChanged covers phase and step markers, which carry their value
// either in the payload or as the object name
func (m *Mirror) onMarkerChanged(ev engine.Event, property string) error {
	game, _, err := m.ensureGame(ev)
	if err != nil {
		return err
	}
	marker := payloadString(ev, property)
	if marker == "" {
		marker = ev.ObjectName
	}
	if marker == "" {
		return fmt.Errorf("%s change without a %s", property, property)
	}
	return m.write(game, map[string]any{property: marker})
}

func (m *Mirror) onZoneChanged(ev engine.Event) error {
	if ev.ToZone == "" {
		return fmt.Errorf("zone change without a destination")
	}
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	values := map[string]any{"zone": ev.ToZone}
	if player, ok := m.resolvePlayer(ev.PlayerID, ev.PlayerName); ok {
		values["controller"] = player.ID()
	}
	return m.write(in, values)
}

func (m *Mirror) onCardToZone(ev engine.Event, zone string) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	return m.write(in, map[string]any{"zone": zone})
}

func (m *Mirror) onCardRevealed(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	revealer := ev.PlayerName
	if revealer == "" {
		revealer = ev.PlayerID
	}
	in.SetMetadata("revealed_to", revealer)
	return nil
}

func (m *Mirror) onPermanentEntered(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	values := map[string]any{"zone": "battlefield", "status": verb.StatusUntapped}
	if player, ok := m.resolvePlayer(ev.PlayerID, ev.PlayerName); ok {
		values["controller"] = player.ID()
	}
	return m.write(in, values)
}

func (m *Mirror) onPermanentLeft(ev engine.Event) error {
	zone := ev.ToZone
	if zone == "" {
		zone = "graveyard"
	}
	return m.onCardToZone(ev, zone)
}

// onTapped prefers the catalog's tap verb so the execution log mirrors
// the engine's action. A duplicate tap fizzles there, which is exactly
// the audit trail wanted.
func (m *Mirror) onTapped(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	if m.audit("tap", in, nil) {
		return nil
	}
	return m.write(in, map[string]any{"status": verb.StatusTapped})
}

func (m *Mirror) onUntapped(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	if m.audit("untap", in, nil) {
		return nil
	}
	return m.write(in, map[string]any{"status": verb.StatusUntapped})
}

func (m *Mirror) onDestroyed(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	if m.audit("destroy", nil, []*domain.Instance{in}) {
		return nil
	}
	return m.write(in, map[string]any{"zone": "graveyard"})
}

func (m *Mirror) onRegenerated(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	return m.write(in, map[string]any{"status": verb.StatusTapped, "damage": int64(0)})
}

func (m *Mirror) onTransformed(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	name := payloadString(ev, "new_name")
	if name == "" {
		name = ev.ObjectName
	}
	if name == "" {
		return fmt.Errorf("transform without a new face name")
	}
	return m.write(in, map[string]any{"name": name})
}

func (m *Mirror) onAttached(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	host := payloadString(ev, "to")
	if host == "" {
		host = ev.SourceID
	}
	if host == "" {
		return fmt.Errorf("attach without a host")
	}
	return m.write(in, map[string]any{"attached_to": host})
}

func (m *Mirror) onUnattached(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	return m.write(in, map[string]any{"attached_to": ""})
}

func (m *Mirror) onControlGained(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	player, _, err := m.ensurePlayer(ev)
	if err != nil {
		return err
	}
	return m.write(in, map[string]any{"controller": player.ID()})
}

func (m *Mirror) onControlLost(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	return m.write(in, map[string]any{"controller": ""})
}

func (m *Mirror) onTokenCreated(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	values := map[string]any{"zone": "battlefield", "status": verb.StatusUntapped}
	if player, ok := m.resolvePlayer(ev.PlayerID, ev.PlayerName); ok {
		values["controller"] = player.ID()
	}
	return m.write(in, values)
}

// onCounter applies a counter delta. When the event also reports an
// absolute total, the computed value is divergence-checked against it and
// the reported total wins. Counters at zero are dropped from the map.
func (m *Mirror) onCounter(source string, ev engine.Event, sign int64) error {
	in, created, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	counter := payloadString(ev, "counter")
	if counter == "" {
		return fmt.Errorf("counter event without a counter name")
	}
	current := int64(0)
	if v, err := in.GetProperty("counters"); err == nil {
		if counts, ok := v.(map[string]any); ok {
			if n, ok := domain.AsInt64(counts[counter]); ok {
				current = n
			}
		}
	}
	delta := ev.Amount
	if delta == 0 {
		delta = 1
	}
	next := current + sign*delta
	if next < 0 {
		next = 0
	}
	if total, ok := payloadInt(ev, "total"); ok {
		if !created {
			m.checkAbsolute(source, in, "counters."+counter, next, total)
		}
		next = total
	}
	if next <= 0 {
		if err := in.RemoveMapKey("counters", counter); err != nil {
			return err
		}
	} else if err := in.PutMapEntry("counters", counter, next); err != nil {
		return err
	}
	m.kb.NotifyUpdated(in)
	return nil
}

func (m *Mirror) onDamageDealt(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	return m.adjust(in, "damage", ev.Amount, true)
}

func (m *Mirror) onLifeDelta(ev engine.Event, delta int64) error {
	player, _, err := m.ensurePlayer(ev)
	if err != nil {
		return err
	}
	return m.adjust(player, "life", delta, false)
}

// onLifeSet is the absolute write: the mirrored total is checked first,
// then the reported total wins. A freshly created player has nothing
// mirrored yet, so no divergence is recorded for it.
func (m *Mirror) onLifeSet(source string, ev engine.Event) error {
	player, created, err := m.ensurePlayer(ev)
	if err != nil {
		return err
	}
	if !created {
		mirrored, err := player.GetProperty("life")
		if err != nil {
			return err
		}
		m.checkAbsolute(source, player, "life", mirrored, ev.Amount)
	}
	return m.write(player, map[string]any{"life": ev.Amount})
}

func (m *Mirror) onAttackerDeclared(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	return m.write(in, map[string]any{"attacking": true})
}

func (m *Mirror) onBlockerDeclared(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	attacker := ev.SourceID
	if attacker == "" {
		attacker = payloadString(ev, "attacker")
	}
	return m.write(in, map[string]any{"blocking": attacker})
}

func (m *Mirror) onRemovedFromCombat(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	return m.write(in, map[string]any{"attacking": false, "blocking": ""})
}

func (m *Mirror) onSpellCast(ev engine.Event) error {
	in, _, err := m.ensureCard(ev)
	if err != nil {
		return err
	}
	values := map[string]any{"zone": "stack"}
	if player, ok := m.resolvePlayer(ev.PlayerID, ev.PlayerName); ok {
		values["controller"] = player.ID()
	}
	return m.write(in, values)
}

func (m *Mirror) onManaAdded(ev engine.Event) error {
	player, _, err := m.ensurePlayer(ev)
	if err != nil {
		return err
	}
	return m.adjust(player, "mana", ev.Amount, true)
}

func (m *Mirror) onMulliganTaken(ev engine.Event) error {
	player, _, err := m.ensurePlayer(ev)
	if err != nil {
		return err
	}
	if ev.Amount <= 0 {
		return nil
	}
	return m.write(player, map[string]any{"hand_size": ev.Amount})
}

func (m *Mirror) onPlayerFlag(ev engine.Event, property string) error {
	player, _, err := m.ensurePlayer(ev)
	if err != nil {
		return err
	}
	return m.write(player, map[string]any{property: true})
}

func (m *Mirror) onPlayerWon(ev engine.Event) error {
	player, _, err := m.ensurePlayer(ev)
	if err != nil {
		return err
	}
	if err := m.write(player, map[string]any{"won": true}); err != nil {
		return err
	}
	game, _, err := m.ensureGame(engine.Event{Kind: ev.Kind})
	if err != nil {
		return err
	}
	winner := player.GetString("name")
	if winner == "" {
		winner = player.ID()
	}
	return m.write(game, map[string]any{"winner": winner})
}
