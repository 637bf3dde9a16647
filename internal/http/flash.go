package http

import (
	"encoding/base64"
	"net/http"
	"strings"
)

const flashCookie = "libreria_flash"

// NotificationType is the style of a one-shot message shown after a redirect.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
)

type flash struct {
	Type    NotificationType
	Message string
}

func setFlash(w http.ResponseWriter, t NotificationType, msg string) {
	v := base64.RawURLEncoding.EncodeToString([]byte(string(t) + "|" + msg))
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    v,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending message, if any, and clears it.
func popFlash(w http.ResponseWriter, r *http.Request) *flash {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	kind, msg, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil
	}
	switch t := NotificationType(kind); t {
	case NotificationSuccess, NotificationError, NotificationWarning:
		return &flash{Type: t, Message: msg}
	}
	return nil
}
