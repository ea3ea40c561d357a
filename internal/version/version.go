// Package version хранит сведения о сборке сервиса продаж.
package version

import "fmt"

// Заполняются через -ldflags "-X github.com/vladislavdragonenkov/salesrepo/internal/version.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию; её же отдаёт /healthz.
func GetVersion() string { return version }

func GetCommit() string { return commit }

func GetDate() string { return date }

// String возвращает строку для лога запуска.
func String() string {
	return fmt.Sprintf("salesrepo version=%s commit=%s date=%s", version, commit, date)
}
