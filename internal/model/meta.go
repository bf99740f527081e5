package model

// BookMeta holds per-book auxiliary attributes. All books' metadata is
// persisted together as a single blob keyed by book name.
type BookMeta struct {
	Group  string   `json:"group"`
	Note   string   `json:"note"`
	Tags   []string `json:"tags"`
	Pinned bool     `json:"pinned"`
}

// NewBookMeta returns the metadata a book gets before any edits.
func NewBookMeta() BookMeta {
	return BookMeta{Tags: []string{}}
}

// CharacterBindings are the book associations of one character: a single
// primary slot plus an ordered list of additional books.
type CharacterBindings struct {
	Primary    string   `json:"primary,omitempty"`
	Additional []string `json:"additional,omitempty"`
}

// BindingState is a snapshot of every binding scope for the active context.
type BindingState struct {
	Character CharacterBindings `json:"character"`
	Chat      string            `json:"chat,omitempty"`
	Global    []string          `json:"global,omitempty"`
}
