package common

import "errors"

var (
	ErrModulePaused = errors.New("module paused")
	ErrBlacklisted  = errors.New("address blacklisted")
)

type PauseView interface {
	IsPaused(module string) bool
}

// BlacklistView reports whether an address is barred from a module.
type BlacklistView interface {
	IsBlacklisted(addr [20]byte) (bool, error)
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Admit runs the admission checks shared by mutating entry points: every
// supplied pause view first, then the caller blacklist.
func Admit(pauses []PauseView, blacklist BlacklistView, module string, caller [20]byte) error {
	for _, p := range pauses {
		if err := Guard(p, module); err != nil {
			return err
		}
	}
	if blacklist == nil {
		return nil
	}
	listed, err := blacklist.IsBlacklisted(caller)
	if err != nil {
		return err
	}
	if listed {
		return ErrBlacklisted
	}
	return nil
}

// StaticPauses is a fixed module pause table, typically loaded from config.
type StaticPauses map[string]bool

// IsPaused implements PauseView.
func (s StaticPauses) IsPaused(module string) bool {
	return s[module]
}
