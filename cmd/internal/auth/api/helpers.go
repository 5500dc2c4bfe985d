package authapi

import (
	"net"
	"net/http"
	"strings"

	"taskmgr/cmd/internal/auth/session"
)

func toSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{
		ID:                  s.ID,
		UserID:              s.UserID,
		TokenHash:           s.TokenHash,
		ExpiresAt:           s.ExpiresAt,
		CreatedByIP:         s.CreatedByIP,
		RevokedAt:           s.RevokedAt,
		RevokedByIP:         s.RevokedByIP,
		ReplacedByTokenHash: s.ReplacedByTokenHash,
		IsActive:            s.IsActive,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

func toSessionResponses(in []session.Session) []sessionResponse {
	out := make([]sessionResponse, 0, len(in))
	for _, s := range in {
		out = append(out, toSessionResponse(s))
	}
	return out
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
