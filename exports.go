package reconcile

import "github.com/xraph/reconcile/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	SYP        = types.SYP
	USD        = types.USD
	EUR        = types.EUR
	Zero       = types.Zero
	FromMajor  = types.FromMajor
	ParseMoney = types.ParseMoney
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
