package invoker

import "strings"

// Mode is the execution strategy of an Invoker.
type Mode int

const (
	ModeExternal Mode = iota
	ModeEmbedded
)

func (m Mode) String() string {
	switch m {
	case ModeEmbedded:
		return "embedded"
	case ModeExternal:
		return "external"
	default:
		return "unknown"
	}
}

const internalPrefix = "internal"

// selectMode picks the strategy for a compiler setting. The in-process
// compiler is used only when the setting asks for it and both the compiler
// and its file manager can be obtained; any lookup failure falls back to
// external execution without error.
func selectMode(setting string, p ToolProvider, log Logger) (Mode, Compiler, FileManager) {
	if setting != "" && !strings.HasPrefix(setting, internalPrefix) {
		return ModeExternal, nil, nil
	}
	if p == nil {
		return ModeExternal, nil, nil
	}
	compiler, err := p.SystemCompiler()
	if err != nil || compiler == nil {
		log.Debug("in-process compiler unavailable", "error", errString(err))
		return ModeExternal, nil, nil
	}
	files, err := compiler.StandardFileManager()
	if err != nil || files == nil {
		log.Debug("in-process file manager unavailable", "error", errString(err))
		return ModeExternal, nil, nil
	}
	return ModeEmbedded, compiler, files
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
