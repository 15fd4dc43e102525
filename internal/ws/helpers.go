package ws

import (
	"encoding/json"

	"github.com/google/uuid"

	"guild-chat-service/internal/models"
)

func newConnID() string {
	return uuid.NewString()
}

func encode(event models.Event) ([]byte, error) {
	return json.Marshal(event)
}
