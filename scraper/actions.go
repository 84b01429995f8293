package scraper

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/peel/models"
)

// actionTimeout is the per-action deadline.
const actionTimeout = 10 * time.Second

// executeActions runs the ordered list of browser actions on the page.
// If any action fails, it returns an error describing which action failed
// and how many completed successfully.
func executeActions(ctx context.Context, page *rod.Page, actions []models.Action) error {
	for i, action := range actions {
		if err := executeSingleAction(ctx, page, action); err != nil {
			return models.NewPeelError(
				models.ErrCodeActionFailed,
				fmt.Sprintf("action %d (%s) failed after %d completed: %v", i, action.Type, i, err),
				err,
			)
		}
	}
	return nil
}

// executeSingleAction dispatches a single action with its own timeout.
func executeSingleAction(ctx context.Context, page *rod.Page, action models.Action) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	p := page.Context(actionCtx)

	switch action.Type {
	case "wait":
		return execWait(p, action)
	case "click":
		return execClick(p, action)
	case "type":
		return execType(p, action)
	case "scroll":
		return execScroll(p, action)
	case "hover":
		return execHover(p, action)
	case "press":
		return execPress(p, action)
	case "execute_js":
		return execJS(p, action)
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

// execWait either sleeps for Value milliseconds or waits for a CSS selector
// to appear.
func execWait(p *rod.Page, action models.Action) error {
	if action.Selector != "" {
		return p.WaitElementsMoreThan(action.Selector, 0)
	}
	if ms, err := strconv.Atoi(action.Value); err == nil && ms > 0 {
		d := time.Duration(ms) * time.Millisecond
		select {
		case <-time.After(d):
			return nil
		case <-p.GetContext().Done():
			return p.GetContext().Err()
		}
	}
	return nil
}

// execClick finds the element matching the selector and clicks it.
func execClick(p *rod.Page, action models.Action) error {
	if action.Selector == "" {
		return fmt.Errorf("click action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// execType finds the element matching the selector and types Text into it.
func execType(p *rod.Page, action models.Action) error {
	if action.Selector == "" {
		return fmt.Errorf("type action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Input(action.Text)
}

// execHover finds the element matching the selector and hovers over it,
// triggering any mouseenter/hover-revealed UI.
func execHover(p *rod.Page, action models.Action) error {
	if action.Selector == "" {
		return fmt.Errorf("hover action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Hover()
}

// execPress sends a single named key press (e.g. "Enter", "Escape",
// "ArrowDown") to the page, or to the element matched by Selector if set.
func execPress(p *rod.Page, action models.Action) error {
	key, ok := input.Keys[action.Key]
	if !ok {
		return fmt.Errorf("unknown key: %q", action.Key)
	}
	if action.Selector != "" {
		el, err := p.Element(action.Selector)
		if err != nil {
			return fmt.Errorf("element %q not found: %w", action.Selector, err)
		}
		return el.Type(key)
	}
	return p.Keyboard.Type(key)
}

// execScroll scrolls the page up or down. Value holds the number of
// viewport-heights to scroll; Key "up" reverses the direction.
func execScroll(p *rod.Page, action models.Action) error {
	amount, err := strconv.Atoi(action.Value)
	if err != nil || amount <= 0 {
		amount = 1
	}

	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return fmt.Errorf("failed to get viewport height: %w", err)
	}
	viewportHeight := res.Value.Int()

	for i := 0; i < amount; i++ {
		scrollDelta := viewportHeight
		if action.Key == "up" {
			scrollDelta = -viewportHeight
		}

		if err := p.Mouse.Scroll(0, float64(scrollDelta), 0); err != nil {
			return fmt.Errorf("scroll step %d failed: %w", i, err)
		}

		// Brief pause between scroll steps to let lazy-loaded content trigger.
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

// execJS evaluates arbitrary JavaScript (Script) in the page context.
func execJS(p *rod.Page, action models.Action) error {
	if action.Script == "" {
		return fmt.Errorf("execute_js action requires a script")
	}
	_, err := p.Eval(action.Script)
	return err
}
