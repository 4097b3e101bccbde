package msgfmt

import "strings"

// Builder assembles a message line by line. In HTML mode every plain input is
// escaped on the way in, so Build always yields text that is safe for
// ParseMode="HTML".
type Builder struct {
	html  bool
	lines []string
}

// NewBuilder creates a builder. Pass html=true for Telegram HTML output,
// false for plain text.
func NewBuilder(html bool) *Builder {
	return &Builder{html: html}
}

// HTML reports whether the builder escapes for HTML parse mode.
func (b *Builder) HTML() bool { return b.html }

// Title adds a bold title line. Emoji is optional.
func (b *Builder) Title(emoji, title string) *Builder {
	e := strings.TrimSpace(emoji)
	t := strings.TrimSpace(title)
	if t == "" {
		return b
	}
	if b.html {
		if e != "" {
			b.lines = append(b.lines, Esc(e).String()+" "+B(t).String())
		} else {
			b.lines = append(b.lines, B(t).String())
		}
		return b
	}
	if e != "" {
		b.lines = append(b.lines, e+" "+t)
	} else {
		b.lines = append(b.lines, t)
	}
	return b
}

// Line adds a single line, escaping when the builder is in HTML mode.
func (b *Builder) Line(s string) *Builder {
	if strings.TrimSpace(s) == "" {
		b.lines = append(b.lines, "")
		return b
	}
	if b.html {
		b.lines = append(b.lines, Esc(s).String())
	} else {
		b.lines = append(b.lines, s)
	}
	return b
}

// RawLine appends a line without escaping. Only use with already-safe HTML.
func (b *Builder) RawLine(s string) *Builder {
	b.lines = append(b.lines, s)
	return b
}

// Blank inserts an empty line.
func (b *Builder) Blank() *Builder { return b.Line("") }

// Bullets adds bullet lines, skipping blank items.
func (b *Builder) Bullets(items ...string) *Builder {
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		b.Line("• " + it)
	}
	return b
}

// KV adds a "key: value" row with consistent formatting.
func (b *Builder) KV(key, value string) *Builder {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return b
	}
	if b.html {
		b.lines = append(b.lines, "• "+B(key).String()+": "+Esc(value).String())
		return b
	}
	if value == "" {
		b.lines = append(b.lines, "• "+key)
	} else {
		b.lines = append(b.lines, "• "+key+": "+value)
	}
	return b
}

// Build joins the accumulated lines, trimming outer blank lines.
func (b *Builder) Build() string {
	text := strings.Join(b.lines, "\n")
	return strings.Trim(text, "\n")
}
