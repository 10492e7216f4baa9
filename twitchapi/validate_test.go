package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/onnwee/streamcast/testutil"
)

func TestValidateToken(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockValidateResponse("goodtoken", "streamcastbot", "999", "chat:read", "chat:edit")

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", "goodtoken", nil},
		{"irc prefix", "oauth:goodtoken", nil},
		{"rejected", "badtoken", ErrInvalidToken},
		{"empty", "", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ValidateToken(context.Background(), mock.RewriteClient(), tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateToken() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && (info.Login != "streamcastbot" || !info.HasScope("chat:edit")) {
				t.Errorf("info = %+v", info)
			}
		})
	}
}

func TestValidateToken_ServerError(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.Handlers["/oauth2/validate"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	_, err := ValidateToken(context.Background(), mock.RewriteClient(), "tok")
	if err == nil || errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want a non-token error", err)
	}
}
