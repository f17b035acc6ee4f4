package processor

import (
	"context"
	"fmt"

	"linkdrop/internal/points"
)

// Inactivity sweeps. Each user moves through Active -> Warned -> Penalized:
// the warn sweep fires once per idle stretch (guarded by the warned flag,
// which any activity touch clears), while the penalty sweep has no such
// guard and charges again on every tick the user stays past the threshold.

func (p *Processor) runWarnSweep(ctx context.Context) error {
	users, err := p.store.UsersInactiveSince(ctx, points.InactivityWarnAfter, true)
	if err != nil {
		return fmt.Errorf("warn sweep: %w", err)
	}

	warned := 0
	for _, u := range users {
		text := fmt.Sprintf(
			"⚠️ You've been quiet for two days! Post a link or engage with "+
				"/browse, or you'll start losing <b>%d points</b> per check after three days.",
			points.InactivityPenalty)

		// private chat id equals the user id
		if err := p.sender.SendMessage(ctx, u.ID, text); err != nil {
			p.log.Warn("warn_notification_failed", "user_id", u.ID, "error", err)
			continue
		}
		if err := p.store.MarkWarned(ctx, u.ID); err != nil {
			p.log.Warn("mark_warned_failed", "user_id", u.ID, "error", err)
			continue
		}
		warned++
	}

	p.log.Info("warn_sweep_completed", "candidates", len(users), "warned", warned)
	return nil
}

func (p *Processor) runPenaltySweep(ctx context.Context) error {
	users, err := p.store.UsersInactiveSince(ctx, points.InactivityPenaltyAfter, false)
	if err != nil {
		return fmt.Errorf("penalty sweep: %w", err)
	}

	penalized := 0
	for _, u := range users {
		if err := p.store.AdjustPoints(ctx, u.ID, -points.InactivityPenalty); err != nil {
			p.log.Warn("penalty_adjust_failed", "user_id", u.ID, "error", err)
			continue
		}
		penalized++

		text := fmt.Sprintf(
			"💸 Inactivity penalty: <b>-%d points</b>. Come back and post or "+
				"engage to stop the bleeding!", points.InactivityPenalty)
		if err := p.sender.SendMessage(ctx, u.ID, text); err != nil {
			p.log.Warn("penalty_notification_failed", "user_id", u.ID, "error", err)
		}
	}

	p.log.Info("penalty_sweep_completed", "candidates", len(users), "penalized", penalized)
	return nil
}
