package notify

import (
	"net/http"

	"github.com/noah-isme/slowdrip-api/internal/common"
)

// Contact is the shop's public contact card.
type Contact struct {
	Telegram string   `json:"telegram"`
	Facebook string   `json:"facebook,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	MapURL   string   `json:"mapUrl,omitempty"`
	Address  string   `json:"address,omitempty"`
	Hours    []string `json:"hours,omitempty"`
}

// ContactHandler serves GET /api/v1/contact.
type ContactHandler struct {
	Contact Contact
}

func (h ContactHandler) Get(w http.ResponseWriter, _ *http.Request) {
	c := h.Contact
	if c.Telegram == "" {
		c.Telegram = DefaultTelegramURL
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}
