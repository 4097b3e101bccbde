package notifier

import (
	"rondo/internal/roulette"
	kit "rondo/internal/transport"
)

// PlanOptions controls how a week is rendered into announcements.
type PlanOptions struct {
	HTML bool
}

// Plan expands a week's connections into one personal announcement per
// participant. It is pure; contact resolution and delivery policy live in
// the service.
func Plan(conns []roulette.Connection, runID string, week int, opt PlanOptions) []Announcement {
	var out []Announcement
	for _, c := range conns {
		for _, m := range c.Members() {
			out = append(out, Announcement{
				RunID:   runID,
				Week:    week,
				Contact: m.Contact,
				Text:    PersonalText(m, c.Others(m), week, opt.HTML),
				Options: sendOptions(opt),
			})
		}
	}
	return out
}

// Digest builds the single summary announcement for a week, targeted at the
// given chat.
func Digest(conns []roulette.Connection, runID string, week int, to kit.ChatTarget, opt PlanOptions) Announcement {
	return Announcement{
		RunID:   runID,
		Week:    week,
		Target:  to,
		Text:    DigestText(conns, week, opt.HTML),
		Options: sendOptions(opt),
	}
}

func sendOptions(opt PlanOptions) *kit.SendOptions {
	if !opt.HTML {
		return nil
	}
	return &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
}
