package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

// IdentityResolver turns a bearer token into the user it was issued for.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (uuid.UUID, error)
}

type Options struct {
	// Empty accepts any origin.
	AllowedOrigins []string
	FrameRate      float64
	FrameBurst     int
}

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// The token comes from ?token=xxx (browsers can't set headers on the upgrade)
// or from an Authorization: Bearer header.
func ServeWS(hub *Hub, resolver IdentityResolver, opts Options) http.HandlerFunc {
	acceptOpts := &websocket.AcceptOptions{OriginPatterns: opts.AllowedOrigins}
	if len(opts.AllowedOrigins) == 0 {
		acceptOpts.InsecureSkipVerify = true
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, acceptOpts)
		if err != nil {
			hub.logger.Warn("ws: accept error", slog.Any("error", err))
			return
		}

		userID, err := resolver.ResolveIdentity(r.Context(), tokenFromRequest(r))
		if err != nil {
			hub.logger.Info("ws: rejected connection", slog.String("remote_addr", r.RemoteAddr), slog.Any("error", err))
			conn.Close(websocket.StatusPolicyViolation, "authentication failed")
			return
		}

		var limiter *rate.Limiter
		if opts.FrameRate > 0 {
			limiter = rate.NewLimiter(rate.Limit(opts.FrameRate), opts.FrameBurst)
		}

		client := NewClient(hub, conn, limiter)
		client.Serve(r.Context(), userID)
	}
}

func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}
