// Package notifier delivers pairing announcements.
//
// An announcement is one rendered message headed for one chat: either a
// personal "you are paired with X" note for a participant, or a digest of a
// whole week for a group chat. Plan turns a week's connections into
// announcements; the service owns queuing, rate limiting, retries, and dedup.
//
// # Transport
//
// Delivery is delegated to a kit.Sender implementation (e.g. the Telegram
// sender). Rendering and throttling policy stay here so callers can enqueue
// announcements without depending on a specific messaging platform.
//
// # Dedup
//
// Each announcement carries a dedup key derived from its run, week, chat, and
// text. A suppress window is kept in memory and, when storage is configured,
// persisted so a restart between schedule and send does not double-announce.
//
// # History
//
// For debugging and operator visibility, the service keeps a small in-memory
// history of recently sent announcements and a per-run delivery report.
package notifier
