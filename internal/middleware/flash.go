package middleware

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2/middleware/session"
)

const flashKey = "flashes"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"` // success, error, info
	Message string `json:"message"`
}

// AddFlash appends a flash message to the session. The caller saves the session.
func AddFlash(sess *session.Session, kind, message string) {
	flashes := readFlashes(sess)
	flashes = append(flashes, Flash{Kind: kind, Message: message})
	if data, err := json.Marshal(flashes); err == nil {
		sess.Set(flashKey, data)
	}
}

func addFlash(sess *session.Session, kind, message string) {
	AddFlash(sess, kind, message)
}

// TakeFlashes returns the pending flash messages and clears them.
func TakeFlashes(sess *session.Session) []Flash {
	flashes := readFlashes(sess)
	sess.Delete(flashKey)
	return flashes
}

func readFlashes(sess *session.Session) []Flash {
	data, ok := sess.Get(flashKey).([]byte)
	if !ok {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(data, &flashes); err != nil {
		return nil
	}
	return flashes
}
