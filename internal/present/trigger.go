package present

// Trigger is the resolved, dispatch-ready celebration payload.
// Triggers are values; sinks must not retain pointers into them.
type Trigger struct {
	MainText string `json:"main_text" yaml:"main_text"`
	SubText  string `json:"sub_text" yaml:"sub_text"`

	// ItemID identifies the item that caused the trigger. Empty for
	// triggers injected through the control channel.
	ItemID string `json:"item_id,omitempty" yaml:"item_id,omitempty"`
}

// Sink consumes triggers.
type Sink interface {
	// Present shows the trigger. It must not block on the side effect it
	// starts and must be safe to call repeatedly.
	Present(t Trigger) error

	// Dismiss hides whatever is currently shown. Safe when nothing is shown.
	Dismiss()
}
