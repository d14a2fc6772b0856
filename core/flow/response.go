// Package flow implements the conversational booking state machine.
// It consumes typed actions, reads and writes the session store, and emits
// transport-neutral responses rendered by the platform adapters.
package flow

// Button is one cell of a response keyboard. Exactly one of Action or URL is
// set for tappable buttons; a button with neither is a non-interactive
// section header (carried on the wire as the no_op action).
type Button struct {
	Label  string
	Action string
	URL    string
}

// IsHeader reports whether the button is a non-interactive section label.
func (b Button) IsHeader() bool {
	return b.URL == "" && (b.Action == "" || b.Action == CodeNoOp)
}

// Response is the transport-neutral bot reply: text, an optional button
// grid, and whether the previous bot message should be edited in place.
type Response struct {
	Text         string
	Keyboard     [][]Button
	EditPrevious bool
}

// Empty reports whether there is nothing to deliver.
func (r Response) Empty() bool {
	return r.Text == "" && len(r.Keyboard) == 0
}

// Btn builds an action button.
func Btn(label, action string) Button {
	return Button{Label: label, Action: action}
}

// LinkBtn builds a URL button. Link buttons never round-trip through the router.
func LinkBtn(label, url string) Button {
	return Button{Label: label, URL: url}
}

// Header builds a non-interactive section label rendered as a plain line.
func Header(label string) Button {
	return Button{Label: label, Action: CodeNoOp}
}

// Row groups buttons into one keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}
