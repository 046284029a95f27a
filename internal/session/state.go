package session

// State is a snapshot of the accumulated results and pagination flag.
type State struct {
	Results []string
	HasMore bool
	// Err is the failure of the most recent applied dispatch, if any.
	Err error
}

// View is what a Renderer paints.
type View struct {
	Items   []string
	HasMore bool
	Err     error
}

type op int

const (
	opNone op = iota
	opSearch
	opLoadMore
)

func (o op) String() string {
	switch o {
	case opSearch:
		return "search"
	case opLoadMore:
		return "load_more"
	default:
		return "none"
	}
}
