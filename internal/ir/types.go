package ir

// ActionKind distinguishes how an action produces its output lines.
type ActionKind string

const (
	// KindCommand runs an external command to completion.
	KindCommand ActionKind = "command"
	// KindListener tails an append-only file forever.
	KindListener ActionKind = "listener"
	// KindModule runs a registered in-process module.
	KindModule ActionKind = "module"
)

// Workflow maps event names to the actions each event spawns.
//
// Events may reference undefined events or themselves; the compiler does not
// reject either.
type Workflow struct {
	Events map[string][]ActionSpec `json:"events"`
	Order  []string                `json:"order"` // Event declaration order
}

// NewWorkflow creates an empty workflow.
func NewWorkflow() *Workflow {
	return &Workflow{Events: make(map[string][]ActionSpec)}
}

// Add appends an action under the given event, recording the event's
// declaration position on first use.
func (w *Workflow) Add(event string, spec ActionSpec) {
	if _, ok := w.Events[event]; !ok {
		w.Order = append(w.Order, event)
	}
	w.Events[event] = append(w.Events[event], spec)
}

// Declare records an event with no actions. Declaring an existing event
// is a no-op.
func (w *Workflow) Declare(event string) {
	if _, ok := w.Events[event]; ok {
		return
	}
	w.Order = append(w.Order, event)
	w.Events[event] = []ActionSpec{}
}

// Actions returns the actions registered for an event and whether it exists.
func (w *Workflow) Actions(event string) ([]ActionSpec, bool) {
	specs, ok := w.Events[event]
	return specs, ok
}

// ActionSpec describes one runnable unit and its extraction rules.
type ActionSpec struct {
	Name   string     `json:"name"`
	Kind   ActionKind `json:"kind"`
	Cmd    string     `json:"cmd,omitempty"`
	File   string     `json:"file,omitempty"`
	Module string     `json:"module,omitempty"`

	StoreStatic     []KeyTemplate   `json:"store_static,omitempty"`
	Store           []KeyPattern    `json:"store,omitempty"`
	AppendScalar    []KeyPattern    `json:"append_scalar,omitempty"`
	AppendComposite []CompositeRule `json:"append_composite,omitempty"`
	Triggers        []TriggerRule   `json:"events,omitempty"`
}

// KeyTemplate stores a rendered template under Key.
type KeyTemplate struct {
	Key      string `json:"key"`
	Template string `json:"template"`
}

// KeyPattern extracts the first match of Pattern into Key.
type KeyPattern struct {
	Key     string `json:"key"`
	Pattern string `json:"pattern"`
}

// CompositeRule builds one record per line from several field patterns and
// appends it under ArrayKey.
type CompositeRule struct {
	ArrayKey string       `json:"array_key"`
	Fields   []KeyPattern `json:"fields"`
}

// TriggerRule fires every event in Events when Pattern matches a line.
type TriggerRule struct {
	Pattern string   `json:"pattern"`
	Events  []string `json:"events"`
}
