package dialog

type State string

const (
	StateIdle State = "idle"

	// Импорт: ждём .xlsx документ
	StateImportAwaitFile State = "import_await_file"

	// Очистка склада: ждём подтверждения кнопкой
	StatePurgeConfirm State = "purge_confirm"
)

type Payload map[string]any

type Item struct {
	ChatID  int64
	State   State
	Payload Payload
}
