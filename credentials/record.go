// Package credentials defines the logical record persisted in the encrypted
// credentials file: the chat bot token, the OBS websocket password and the
// moderator roster. The plaintext form is newline-delimited KEY=value pairs.
package credentials

import (
	"errors"
	"strconv"
	"strings"
)

// Keys of the plaintext record. The token key predates multi-platform support
// and is kept so existing files keep loading.
const (
	KeyBotToken        = "DISCORD_TOKEN"
	KeyControlPassword = "OBS_PASSWORD"
	KeyModerators      = "MODERATORS"
)

// ErrMissingToken is returned by Validate when no bot token is stored.
var ErrMissingToken = errors.New("bot token is required")

// Moderator is one roster entry.
type Moderator struct {
	ID   uint64
	Name string
}

// Record is the decrypted content of the credentials file.
type Record struct {
	BotToken        string
	ControlPassword string
	Moderators      []Moderator
}

// Parse reads a plaintext record. It never fails: lines without '=' are
// ignored and malformed moderator entries are skipped.
func Parse(raw string) Record {
	var r Record
	for _, line := range strings.Split(raw, "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		switch strings.TrimSpace(k) {
		case KeyBotToken:
			r.BotToken = v
		case KeyControlPassword:
			r.ControlPassword = v
		case KeyModerators:
			r.Moderators = ParseModerators(v)
		}
	}
	return r
}

// ParseModerators parses comma-joined id:name pairs. Entries without a colon or
// with a non-numeric id are skipped. A repeated id keeps its first position and
// takes the last name.
func ParseModerators(s string) []Moderator {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []Moderator
	index := make(map[uint64]int)
	for _, pair := range strings.Split(s, ",") {
		idStr, name, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			continue
		}
		if i, seen := index[id]; seen {
			out[i].Name = name
			continue
		}
		index[id] = len(out)
		out = append(out, Moderator{ID: id, Name: name})
	}
	return out
}

// FormatModerators is the inverse of ParseModerators.
func FormatModerators(mods []Moderator) string {
	parts := make([]string, 0, len(mods))
	for _, m := range mods {
		parts = append(parts, strconv.FormatUint(m.ID, 10)+":"+SanitizeName(m.Name))
	}
	return strings.Join(parts, ",")
}

// SanitizeName strips the characters the record format cannot carry in a
// display name: separators and line breaks.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ',', '\n', '\r':
			return ' '
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}

func singleLine(v string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", "", "\n", "").Replace(v))
}

// Encode renders the record in its plaintext file form.
func (r Record) Encode() string {
	var b strings.Builder
	b.WriteString(KeyBotToken + "=" + singleLine(r.BotToken) + "\n")
	b.WriteString(KeyControlPassword + "=" + singleLine(r.ControlPassword) + "\n")
	b.WriteString(KeyModerators + "=" + FormatModerators(r.Moderators) + "\n")
	return b.String()
}

// Validate reports whether the bridge can start with this record.
func (r Record) Validate() error {
	if r.BotToken == "" {
		return ErrMissingToken
	}
	return nil
}

// WithModerators returns a copy of r with the roster replaced.
func (r Record) WithModerators(mods []Moderator) Record {
	r.Moderators = append([]Moderator(nil), mods...)
	return r
}
