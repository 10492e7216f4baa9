package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/onnwee/streamcast/dispatch"
)

// ErrInvalidToken means the platform rejected the bot credentials.
var ErrInvalidToken = errors.New("chat platform rejected the bot token")

// Handler runs invocations. *dispatch.Dispatcher implements it.
type Handler interface {
	Dispatch(ctx context.Context, inv dispatch.Invocation) dispatch.Outcome
	Commands() []dispatch.Command
}

// Gateway is a running chat platform session.
type Gateway interface {
	// Run blocks until ctx is cancelled or the session fails.
	Run(ctx context.Context) error
	Platform() string
}

// ParseCommand splits "<prefix>name arg..." into a lower-cased name and the
// trimmed remainder. Telegram's "/name@botname" form is accepted.
func ParseCommand(text, prefix string) (name, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return "", "", false
	}
	text = text[len(prefix):]
	name, arg, _ = strings.Cut(text, " ")
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(arg), true
}

// needsTarget reports whether a command acts on another user.
func needsTarget(command string) bool {
	return command == "addmod" || command == "remmod"
}

// Directory remembers users seen in chat so @mentions can be resolved to ids.
// Keys are lower-cased logins.
type Directory struct {
	mu    sync.RWMutex
	users map[string]dispatch.Member
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{users: make(map[string]dispatch.Member)}
}

// Observe records login → member. Empty logins or zero ids are ignored.
func (d *Directory) Observe(login string, m dispatch.Member) {
	login = normalizeLogin(login)
	if login == "" || m.ID == 0 {
		return
	}
	d.mu.Lock()
	d.users[login] = m
	d.mu.Unlock()
}

// Lookup resolves a login or @mention.
func (d *Directory) Lookup(login string) (dispatch.Member, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.users[normalizeLogin(login)]
	return m, ok
}

// lookupID finds a seen member by id.
func (d *Directory) lookupID(id uint64) (dispatch.Member, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.users {
		if m.ID == id {
			return m, true
		}
	}
	return dispatch.Member{}, false
}

func normalizeLogin(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

// firstWord returns the first whitespace-separated token of s.
func firstWord(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// tracker counts in-flight command goroutines so Run can drain them on exit.
type tracker struct {
	wg sync.WaitGroup
}

func (t *tracker) Go(fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn()
	}()
}

func (t *tracker) Wait() { t.wg.Wait() }
