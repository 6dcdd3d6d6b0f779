package domain

const (
	// ConfigFileName is the name of the task file.
	ConfigFileName = "tend.yaml"

	// AltConfigFileName is accepted when ConfigFileName is absent.
	AltConfigFileName = "tend.yml"

	// DefaultTaskName is the task run when none is requested.
	DefaultTaskName = "default"

	// WatchHandlerName identifies the built-in handler that starts a watch session.
	WatchHandlerName = "watch"

	// WatchTaskName is the synthesised task watching every rule.
	WatchTaskName = "watch"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// ConfigFileNames lists the task file names in lookup order.
func ConfigFileNames() []string {
	return []string{ConfigFileName, AltConfigFileName}
}
