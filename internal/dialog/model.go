package dialog

type State string

const (
	StateIdle State = "idle"

	// Модерация
	StateAwaitImportFile  State = "await_import_file"  // ожидание xlsx с упражнениями
	StateAwaitPurgeNames  State = "await_purge_names"  // ввод авторов для массового удаления
	StateAwaitPurgeAccept State = "await_purge_accept" // подтверждение удаления
)

type Payload map[string]any

type Item struct {
	ChatID  int64
	State   State
	Payload Payload
}
