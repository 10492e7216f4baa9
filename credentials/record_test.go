package credentials

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse_LegacyRecord(t *testing.T) {
	r := Parse("DISCORD_TOKEN=abc\nOBS_PASSWORD=\nMODERATORS=1:Alice,2:Bob\n")
	if r.BotToken != "abc" {
		t.Errorf("BotToken = %q, want abc", r.BotToken)
	}
	if r.ControlPassword != "" {
		t.Errorf("ControlPassword = %q, want empty", r.ControlPassword)
	}
	want := []Moderator{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}}
	if !reflect.DeepEqual(r.Moderators, want) {
		t.Errorf("Moderators = %+v, want %+v", r.Moderators, want)
	}
}

func TestParseModerators(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Moderator
	}{
		{name: "empty", in: "", want: nil},
		{name: "missing colon skipped", in: "1:Alice,3,Eve,2:Bob", want: []Moderator{{1, "Alice"}, {2, "Bob"}}},
		{name: "non-numeric id skipped", in: "x:Mallory,4:Dan", want: []Moderator{{4, "Dan"}}},
		{name: "name keeps extra colons", in: "5:team:lead", want: []Moderator{{5, "team:lead"}}},
		{name: "duplicate id last name wins", in: "1:Alice,2:Bob,1:Alicia", want: []Moderator{{1, "Alicia"}, {2, "Bob"}}},
		{name: "large snowflake ids", in: "123456789012345678:Big", want: []Moderator{{123456789012345678, "Big"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseModerators(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseModerators(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	r := Record{
		BotToken:        "tok.en=with=equals",
		ControlPassword: "007 pa$$ #word",
		Moderators:      []Moderator{{2, "Bob"}, {1, "Alice, the first"}},
	}
	got := Parse(r.Encode())
	if got.BotToken != r.BotToken || got.ControlPassword != r.ControlPassword {
		t.Errorf("round trip secrets = %+v, want %+v", got, r)
	}
	want := []Moderator{{2, "Bob"}, {1, "Alice  the first"}}
	if !reflect.DeepEqual(got.Moderators, want) {
		t.Errorf("round trip moderators = %+v, want %+v", got.Moderators, want)
	}
}

func TestEncode_Format(t *testing.T) {
	r := Record{BotToken: "abc", Moderators: []Moderator{{1, "Alice"}, {2, "Bob"}}}
	want := "DISCORD_TOKEN=abc\nOBS_PASSWORD=\nMODERATORS=1:Alice,2:Bob\n"
	if got := r.Encode(); got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	if err := (Record{}).Validate(); !errors.Is(err, ErrMissingToken) {
		t.Errorf("Validate() = %v, want ErrMissingToken", err)
	}
	if err := (Record{BotToken: "x"}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestWithModerators_Copies(t *testing.T) {
	mods := []Moderator{{1, "A"}}
	r := Record{BotToken: "t"}.WithModerators(mods)
	mods[0].Name = "changed"
	if r.Moderators[0].Name != "A" {
		t.Error("WithModerators aliased the caller's slice")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Alice", "Alice"},
		{"team:lead", "team:lead"},
		{"a,b", "a b"},
		{"line\r\nbreak", "line  break"},
		{" , ", ""},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	// A colon in a name survives a round trip because ids end at the first colon.
	r := Record{BotToken: "t", Moderators: []Moderator{{9, SanitizeName("ops:night")}}}
	if got := Parse(r.Encode()).Moderators; !reflect.DeepEqual(got, []Moderator{{9, "ops:night"}}) {
		t.Errorf("round trip = %+v", got)
	}
}
