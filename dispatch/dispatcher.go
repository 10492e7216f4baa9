// Package dispatch turns chat command invocations into roster mutations and
// OBS control calls.
//
// Every invocation goes through the same steps: look the command up in a
// static table, check the caller against the command's level, run the handler,
// and return exactly one Outcome. Errors never escape Dispatch; they are
// converted to Error outcomes, including handler panics.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/streamcast/control"
	"github.com/onnwee/streamcast/credentials"
	"github.com/onnwee/streamcast/roster"
	"github.com/onnwee/streamcast/scenes"
	"github.com/onnwee/streamcast/telemetry"
)

// Kind is the category of a command outcome.
type Kind int

const (
	Success Kind = iota
	// Info is a non-error outcome where nothing changed (stream already live).
	Info
	Error
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Info:
		return "info"
	default:
		return "error"
	}
}

// Outcome is the single response to an invocation. Err carries the cause of
// an Error outcome for logging and audit; it is never shown to users.
type Outcome struct {
	Kind    Kind
	Message string
	Err     error
}

func success(format string, args ...any) Outcome {
	return Outcome{Kind: Success, Message: fmt.Sprintf(format, args...)}
}

func info(msg string) Outcome { return Outcome{Kind: Info, Message: msg} }

func failure(err error, msg string) Outcome { return Outcome{Kind: Error, Message: msg, Err: err} }

// Member identifies a chat user.
type Member struct {
	ID   uint64
	Name string
}

// Invocation is one command as delivered by a chat gateway. OwnerID is
// resolved by the gateway from the platform context on every message.
type Invocation struct {
	Command  string
	Arg      string
	Caller   Member
	OwnerID  uint64
	Target   *Member
	Platform string
}

// Persister reads and writes the plaintext credentials record. *securestore.Store
// implements it.
type Persister interface {
	LoadFile(path string) string
	SaveFile(path, plaintext string) error
}

// AuditEntry is one handled command.
type AuditEntry struct {
	CorrelationID string
	Platform      string
	Command       string
	CallerID      uint64
	Outcome       string
	Detail        string
	CreatedAt     time.Time
}

// AuditSink records handled commands. Failures are logged and otherwise ignored.
type AuditSink interface {
	RecordCommand(ctx context.Context, e AuditEntry) error
}

// Config wires a Dispatcher.
type Config struct {
	Control         control.Client
	Roster          *roster.Roster
	Scenes          *scenes.Cache
	Store           Persister
	CredentialsPath string
	// Record supplies the token and control password written back on every
	// roster change.
	Record credentials.Record
	Audit  AuditSink
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	control  control.Client
	roster   *roster.Roster
	scenes   *scenes.Cache
	store    Persister
	path     string
	record   credentials.Record
	audit    AuditSink
	commands map[string]Command

	// persistMu orders roster mutations with their file writes so the file
	// always reflects the latest in-memory roster. Never held across control calls.
	persistMu sync.Mutex
}

// New builds a dispatcher. Control, Roster and Scenes are required.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Control == nil || cfg.Roster == nil || cfg.Scenes == nil {
		return nil, errors.New("dispatch: control client, roster and scene cache are required")
	}
	d := &Dispatcher{
		control:  cfg.Control,
		roster:   cfg.Roster,
		scenes:   cfg.Scenes,
		store:    cfg.Store,
		path:     cfg.CredentialsPath,
		record:   cfg.Record,
		audit:    cfg.Audit,
		commands: make(map[string]Command, len(commandTable)),
	}
	for _, c := range commandTable {
		d.commands[c.Name] = c
	}
	telemetry.SetRosterSize(d.roster.Len())
	return d, nil
}

// Commands returns the command table in display order.
func (d *Dispatcher) Commands() []Command {
	return append([]Command(nil), commandTable...)
}

// Dispatch runs one invocation and returns its outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) (out Outcome) {
	name := strings.ToLower(strings.TrimSpace(inv.Command))
	ctx, corr := telemetry.EnsureCorrelation(ctx)
	logger := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "dispatch"),
		slog.String("command", name),
		slog.Uint64("caller_id", inv.Caller.ID),
		slog.String("platform", inv.Platform),
	)
	known := metricName(name, d.commands)
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerName, "dispatch."+known, telemetry.CommandAttrs(inv.Platform, known, inv.Caller.ID)...)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("command handler panicked", slog.Any("panic", r))
			out = failure(fmt.Errorf("%w: %v", ErrInternal, r), "Something went wrong handling that command.")
		}
		class := Classify(out.Err)
		if out.Kind == Error {
			telemetry.RecordError(span, out.Err)
			logger.Warn("command failed", slog.String("class", class.String()), slog.Any("err", out.Err), slog.Duration("elapsed", time.Since(start)))
		} else {
			telemetry.SetSpanSuccess(span)
			logger.Info("command handled", slog.String("outcome", out.Kind.String()), slog.Duration("elapsed", time.Since(start)))
		}
		span.End()
		telemetry.RecordCommand(known, out.Kind.String())
		d.recordAudit(ctx, logger, AuditEntry{
			CorrelationID: corr,
			Platform:      inv.Platform,
			Command:       name,
			CallerID:      inv.Caller.ID,
			Outcome:       out.Kind.String(),
			Detail:        auditDetail(out, class),
			CreatedAt:     start.UTC(),
		})
	}()

	cmd, ok := d.commands[name]
	if !ok {
		return failure(fmt.Errorf("%w: %q", ErrUnknownCommand, inv.Command), fmt.Sprintf("Unknown command %q.", inv.Command))
	}
	if !d.permitted(cmd.Level, inv) {
		return failure(ErrPermissionDenied, cmd.deniedMessage())
	}
	return cmd.handler(d, ctx, inv)
}

// permitted re-checks the caller against the owner id supplied with this
// invocation; the owner is never cached.
func (d *Dispatcher) permitted(level Level, inv Invocation) bool {
	switch level {
	case Public:
		return true
	case OwnerOnly:
		return inv.Caller.ID == inv.OwnerID
	default:
		return d.roster.IsAuthorized(inv.Caller.ID, inv.OwnerID)
	}
}

// metricName keeps unknown command names out of metric labels and span names.
func metricName(name string, known map[string]Command) string {
	if _, ok := known[name]; ok {
		return name
	}
	return "unknown"
}

func auditDetail(out Outcome, class ErrorClass) string {
	if out.Err == nil {
		return out.Message
	}
	return class.String() + ": " + out.Err.Error()
}

func (d *Dispatcher) recordAudit(ctx context.Context, logger *slog.Logger, e AuditEntry) {
	if d.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := d.audit.RecordCommand(ctx, e); err != nil {
		logger.Warn("audit record failed", slog.Any("err", err))
	}
}

// RefreshScenes fetches the scene list from OBS into the cache. On failure the
// previous list is returned.
func (d *Dispatcher) RefreshScenes(ctx context.Context) []string {
	return d.scenes.Refresh(ctx, d.FetchScenes)
}

// FetchScenes calls GetScenes with timing and refresh metrics. It is the
// fetch function handed to the scene cache and its scheduler.
func (d *Dispatcher) FetchScenes(ctx context.Context) ([]string, error) {
	var names []string
	err := d.timed(ctx, "GetSceneList", func(ctx context.Context) error {
		var err error
		names, err = d.control.GetScenes(ctx)
		return err
	})
	telemetry.RecordSceneRefresh(err == nil, len(names))
	return names, err
}

// Autocomplete returns up to scenes.DefaultLimit cached scene names matching
// partial. The cache is refreshed only when it is empty.
func (d *Dispatcher) Autocomplete(ctx context.Context, partial string) []string {
	if d.scenes.Empty() {
		d.RefreshScenes(ctx)
	}
	return d.scenes.MatchPrefix(partial, scenes.DefaultLimit)
}

// Moderators returns the current roster.
func (d *Dispatcher) Moderators() []credentials.Moderator {
	return d.roster.List()
}

func (d *Dispatcher) timed(ctx context.Context, request string, fn func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerName, "obs."+request, telemetry.ControlAttr(request))
	defer span.End()
	var err error
	telemetry.TimeFunc(telemetry.ControlCallObserver(request), func() {
		err = fn(ctx)
	})
	telemetry.RecordError(span, err)
	return err
}

// persist writes the record with mods as its roster. The caller holds persistMu.
// Token and password are re-read from the file first so a setup run while the
// bridge is live is not reverted by the next roster write.
func (d *Dispatcher) persist(mods []credentials.Moderator) error {
	telemetry.SetRosterSize(len(mods))
	if d.store == nil {
		return nil
	}
	if cur := credentials.Parse(d.store.LoadFile(d.path)); cur.BotToken != "" {
		d.record.BotToken = cur.BotToken
		d.record.ControlPassword = cur.ControlPassword
	}
	rec := d.record.WithModerators(mods)
	if err := d.store.SaveFile(d.path, rec.Encode()); err != nil {
		telemetry.RecordPersistFailure()
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func displayName(m Member) string {
	if name := credentials.SanitizeName(m.Name); name != "" {
		return name
	}
	return strconv.FormatUint(m.ID, 10)
}
