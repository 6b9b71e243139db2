package verb

import (
	"fmt"

	"grimoire/internal/domain"
)

// Cost gates execution. CanPay must be a pure check; Pay performs the
// payment through the context so it lands in the undo log. Apply confirms
// every cost payable before paying any of them.
type Cost interface {
	Name() string
	CanPay(ctx *Context) bool
	Pay(ctx *Context) error
}

// PropertyThreshold requires a numeric property on the source to be at
// least a computed amount, and pays by decrementing it by that amount.
type PropertyThreshold struct {
	Property string
	Amount   Expr
}

func (c PropertyThreshold) Name() string { return "property_threshold" }

func (c PropertyThreshold) CanPay(ctx *Context) bool {
	if ctx.Source == nil {
		return false
	}
	amount, ok := domain.AsNumber(c.Amount.eval(ctx))
	if !ok {
		return false
	}
	value, err := ctx.Source.GetProperty(c.Property)
	if err != nil {
		return false
	}
	current, ok := domain.AsNumber(value)
	if !ok {
		return false
	}
	return current >= amount
}

func (c PropertyThreshold) Pay(ctx *Context) error {
	if ctx.Source == nil {
		return fmt.Errorf("pay %q: no source", c.Property)
	}
	amount := c.Amount.eval(ctx)
	af, ok := domain.AsNumber(amount)
	if !ok {
		return fmt.Errorf("pay %q: amount %v is not numeric", c.Property, amount)
	}
	current, err := ctx.Source.GetProperty(c.Property)
	if err != nil {
		return err
	}
	cf, ok := domain.AsNumber(current)
	if !ok {
		return fmt.Errorf("pay %q: current value %v is not numeric", c.Property, current)
	}
	ai, amountWhole := domain.AsInt64(amount)
	ci, currentWhole := domain.AsInt64(current)
	var next any
	if amountWhole && currentWhole {
		next = ci - ai
	} else {
		next = cf - af
	}
	return ctx.Write(ctx.Source, c.Property, next)
}

// TapSource requires the source to be untapped and pays by tapping it
type TapSource struct{}

func (c TapSource) Name() string { return "tap_source" }

func (c TapSource) CanPay(ctx *Context) bool {
	return ctx.Source != nil && ctx.Source.GetString(PropStatus) == StatusUntapped
}

func (c TapSource) Pay(ctx *Context) error {
	if ctx.Source == nil {
		return fmt.Errorf("tap: no source")
	}
	return ctx.Write(ctx.Source, PropStatus, StatusTapped)
}
