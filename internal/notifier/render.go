package notifier

import (
	"fmt"
	"strconv"
	"strings"

	"rondo/internal/export"
	"rondo/internal/roulette"
	"rondo/pkg/msgfmt"
)

// PersonalText renders the direct message for one participant: who they are
// paired with this week. In HTML mode partners with a numeric contact become
// tappable mentions.
func PersonalText(member roulette.Participant, partners []roulette.Participant, week int, html bool) string {
	b := msgfmt.NewBuilder(html)
	b.Title("🤝", fmt.Sprintf("Week %d pairing", week))
	b.Blank()
	if html {
		parts := make([]msgfmt.H, 0, len(partners))
		for _, p := range partners {
			parts = append(parts, partnerH(p))
		}
		b.RawLine("Hi " + msgfmt.Esc(member.Name).String() + "! You are paired with " + msgfmt.JoinH(" and ", parts...).String() + ".")
	} else {
		names := make([]string, 0, len(partners))
		for _, p := range partners {
			names = append(names, p.Name)
		}
		b.Line("Hi " + member.Name + "! You are paired with " + strings.Join(names, " and ") + ".")
	}
	b.Line("Reach out and find a time to meet.")
	return b.Build()
}

// DigestText renders a whole week for the optional digest chat.
func DigestText(conns []roulette.Connection, week int, html bool) string {
	b := msgfmt.NewBuilder(html)
	b.Title("🤝", fmt.Sprintf("Week %d pairings", week))
	b.Blank()
	for _, c := range conns {
		if html {
			members := c.Members()
			rest := make([]msgfmt.H, 0, len(members)-1)
			for _, m := range members[1:] {
				rest = append(rest, msgfmt.B(m.Name))
			}
			b.RawLine(msgfmt.B(members[0].Name).String() + " is paired with " + msgfmt.JoinH(" and ", rest...).String())
		} else {
			b.Line(export.ConnectionLine(c))
		}
	}
	return b.Build()
}

// partnerH renders a partner as a mention when the contact is a numeric chat
// ID, bold plain text otherwise.
func partnerH(p roulette.Participant) msgfmt.H {
	if id, err := strconv.ParseInt(strings.TrimSpace(p.Contact), 10, 64); err == nil && id != 0 {
		return msgfmt.Mention(p.Name, id)
	}
	return msgfmt.B(p.Name)
}
