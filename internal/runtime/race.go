package runtime

import "github.com/aretw0/sagalens/pkg/domain"

// resolveRaceLocked marks the child of a race whose label won the settlement.
// No match leaves the race without a winner. A winner, once set, is kept.
func (e *Engine) resolveRaceLocked(raceID domain.EffectID, settlement any) {
	label, ok := domain.WinningLabel(settlement)
	if !ok {
		e.logger.Debug("race settled without a recognizable winner", "effect_id", raceID)
		return
	}

	children := e.reg.ChildrenOf(raceID)
	for _, childID := range children {
		if child, ok := e.reg.Get(childID); ok && child.Winner {
			return
		}
	}
	for _, childID := range children {
		child, ok := e.reg.Get(childID)
		if !ok || child.Label != label {
			continue
		}
		child.Winner = true
		return
	}
}
