package users

import (
	"time"

	"github.com/google/uuid"
)

// User: владелец склада. Web-клиент знает только ID (claim sub),
// Telegram-пользователь привязан через telegram_id.
type User struct {
	ID         uuid.UUID
	TelegramID *int64
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Telegram struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}
