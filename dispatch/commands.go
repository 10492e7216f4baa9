package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/onnwee/streamcast/control"
)

// Level is the authorization a command requires.
type Level int

const (
	Public Level = iota
	OwnerOrModerator
	OwnerOnly
)

func (l Level) String() string {
	switch l {
	case Public:
		return "public"
	case OwnerOrModerator:
		return "owner_or_moderator"
	default:
		return "owner_only"
	}
}

// Command is one entry of the static command table.
type Command struct {
	Name        string
	Level       Level
	Usage       string
	Description string
	handler     func(d *Dispatcher, ctx context.Context, inv Invocation) Outcome
}

func (c Command) deniedMessage() string {
	if c.Level == OwnerOnly {
		return "This command is restricted to the channel owner."
	}
	return "You don't have permission to control the stream."
}

var commandTable = []Command{
	{Name: "switch", Level: OwnerOrModerator, Usage: "switch <scene>", Description: "Switch the OBS scene", handler: (*Dispatcher).switchScene},
	{Name: "start_stream", Level: OwnerOrModerator, Usage: "start_stream", Description: "Start streaming", handler: (*Dispatcher).startStream},
	{Name: "stop_stream", Level: OwnerOrModerator, Usage: "stop_stream", Description: "Stop streaming", handler: (*Dispatcher).stopStream},
	{Name: "addmod", Level: OwnerOnly, Usage: "addmod <user>", Description: "Allow a user to control the stream", handler: (*Dispatcher).addModerator},
	{Name: "remmod", Level: OwnerOnly, Usage: "remmod <user>", Description: "Remove a stream moderator", handler: (*Dispatcher).removeModerator},
	{Name: "listmod", Level: Public, Usage: "listmod", Description: "List stream moderators", handler: (*Dispatcher).listModerators},
	{Name: "scenes", Level: Public, Usage: "scenes [filter]", Description: "List OBS scenes", handler: (*Dispatcher).listScenes},
}

// controlFailure renders a control error. Rejections carry OBS's own comment;
// anything else points at the connection.
func controlFailure(err error, action string) Outcome {
	var rejected *control.RejectedError
	if errors.As(err, &rejected) && rejected.Comment != "" {
		return failure(err, fmt.Sprintf("Failed to %s: %s", action, rejected.Comment))
	}
	return failure(err, fmt.Sprintf("Failed to %s. Is OBS running with WebSocket enabled? Error: %v", action, err))
}

func (d *Dispatcher) switchScene(ctx context.Context, inv Invocation) Outcome {
	name := strings.TrimSpace(inv.Arg)
	if name == "" {
		return failure(fmt.Errorf("%w: scene name is empty", ErrInvalidArgument), "Usage: switch <scene name>")
	}
	err := d.timed(ctx, "SetCurrentProgramScene", func(ctx context.Context) error {
		return d.control.SetActiveScene(ctx, name)
	})
	if err != nil {
		return controlFailure(err, "switch scene")
	}
	return success("Successfully switched to: %s", name)
}

func (d *Dispatcher) streamActive(ctx context.Context) (bool, error) {
	var st control.StreamStatus
	err := d.timed(ctx, "GetStreamStatus", func(ctx context.Context) error {
		var err error
		st, err = d.control.GetStreamStatus(ctx)
		return err
	})
	return st.Active, err
}

func (d *Dispatcher) startStream(ctx context.Context, _ Invocation) Outcome {
	active, err := d.streamActive(ctx)
	if err != nil {
		return controlFailure(err, "read stream status")
	}
	if active {
		return info("Stream is already live!")
	}
	if err := d.timed(ctx, "StartStream", d.control.StartStream); err != nil {
		return controlFailure(err, "start the stream")
	}
	return success("Starting the stream...")
}

func (d *Dispatcher) stopStream(ctx context.Context, _ Invocation) Outcome {
	active, err := d.streamActive(ctx)
	if err != nil {
		return controlFailure(err, "read stream status")
	}
	if !active {
		return info("No active stream detected.")
	}
	if err := d.timed(ctx, "StopStream", d.control.StopStream); err != nil {
		return controlFailure(err, "stop the stream")
	}
	return success("Stream stopped.")
}

func (d *Dispatcher) addModerator(_ context.Context, inv Invocation) Outcome {
	if inv.Target == nil || inv.Target.ID == 0 {
		return failure(fmt.Errorf("%w: no target user", ErrInvalidArgument), "Usage: addmod <user>")
	}
	name := displayName(*inv.Target)

	d.persistMu.Lock()
	defer d.persistMu.Unlock()
	mods, err := d.roster.AddModerator(inv.Caller.ID, inv.OwnerID, inv.Target.ID, name)
	if err != nil {
		return failure(err, "This command is restricted to the channel owner.")
	}
	if err := d.persist(mods); err != nil {
		return failure(err, fmt.Sprintf("%s is now a moderator, but saving failed; the change will be lost on restart.", name))
	}
	return success("%s is now a StreamCast moderator.", name)
}

func (d *Dispatcher) removeModerator(_ context.Context, inv Invocation) Outcome {
	target, ok := d.resolveModerator(inv)
	if !ok {
		if inv.Target == nil && strings.TrimSpace(inv.Arg) == "" {
			return failure(fmt.Errorf("%w: no target user", ErrInvalidArgument), "Usage: remmod <user>")
		}
		return failure(ErrNotFound, "User is not a moderator.")
	}

	d.persistMu.Lock()
	defer d.persistMu.Unlock()
	mods, err := d.roster.RemoveModerator(inv.Caller.ID, inv.OwnerID, target.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return failure(err, "User is not a moderator.")
	case err != nil:
		return failure(err, "This command is restricted to the channel owner.")
	}
	if err := d.persist(mods); err != nil {
		return failure(err, fmt.Sprintf("%s was removed, but saving failed; the change will be lost on restart.", target.Name))
	}
	return success("%s has been removed from moderators.", target.Name)
}

// resolveModerator finds the roster entry for an explicit target, falling back
// to the stored display name when the platform could not resolve a user id.
func (d *Dispatcher) resolveModerator(inv Invocation) (Member, bool) {
	var id uint64
	switch {
	case inv.Target != nil && inv.Target.ID != 0:
		id = inv.Target.ID
	case strings.TrimSpace(inv.Arg) != "":
		found, ok := d.roster.FindByName(strings.TrimPrefix(strings.TrimSpace(inv.Arg), "@"))
		if !ok {
			return Member{}, false
		}
		id = found
	default:
		return Member{}, false
	}
	for _, m := range d.roster.List() {
		if m.ID == id {
			return Member{ID: m.ID, Name: m.Name}, true
		}
	}
	return Member{}, false
}

func (d *Dispatcher) listModerators(_ context.Context, _ Invocation) Outcome {
	mods := d.roster.List()
	if len(mods) == 0 {
		return info("No moderators have been added yet.")
	}
	parts := make([]string, 0, len(mods))
	for _, m := range mods {
		parts = append(parts, fmt.Sprintf("%s (%d)", m.Name, m.ID))
	}
	return success("Moderators: %s", strings.Join(parts, ", "))
}

func (d *Dispatcher) listScenes(ctx context.Context, inv Invocation) Outcome {
	names := d.Autocomplete(ctx, strings.TrimSpace(inv.Arg))
	if len(names) == 0 {
		if d.scenes.Empty() {
			return info("No scenes available. Is OBS running?")
		}
		return info("No scenes match that filter.")
	}
	return success("Scenes: %s", strings.Join(names, ", "))
}
