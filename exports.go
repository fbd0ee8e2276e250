package caption

import "github.com/Jamesmini007/AX2-Caption/types"

// Re-export common types for convenience so users don't have to import types package.

// Credits is re-exported from types package.
type Credits = types.Credits

// GB is re-exported from types package.
type GB = types.GB

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export pricing constants
const (
	SecondsPerCredit = types.SecondsPerCredit
	PerLanguage      = types.PerLanguage
	WelcomeGrant     = types.WelcomeGrant
)

// Re-export Credits helpers
var Sum = types.Sum

// Re-export Entity constructor
var NewEntity = types.NewEntity
