package ir

// Identity is the opaque caller/owner token supplied by the host.
// The store only ever compares identities for equality.
type Identity string

// Ownership grants update rights over one record.
// RecordIndex points into State.Books at the time the entry was created.
type Ownership struct {
	Owner       Identity `json:"owner" msgpack:"owner"`
	RecordIndex uint32   `json:"index" msgpack:"index"`
}

// State is the persisted layout of a library: the encoded book records and
// the ownership entries, both in positional order.
type State struct {
	Books  []string    `json:"books" msgpack:"books"`
	Owners []Ownership `json:"owners" msgpack:"owners"`
}

// Clone returns a deep copy of the state. Nil slices become empty slices.
func (s State) Clone() State {
	books := make([]string, len(s.Books))
	copy(books, s.Books)
	owners := make([]Ownership, len(s.Owners))
	copy(owners, s.Owners)
	return State{Books: books, Owners: owners}
}

// Op names one of the store's callable operations.
type Op string

const (
	OpCreateBook   Op = "create_book"
	OpUpdateBook   Op = "update_book"
	OpBooksByOwner Op = "get_books_by_owner_id"
)

// Valid reports whether op names a known operation.
func (op Op) Valid() bool {
	switch op {
	case OpCreateBook, OpUpdateBook, OpBooksByOwner:
		return true
	}
	return false
}

// Mutating reports whether the operation may change the library state.
func (op Op) Mutating() bool {
	return op == OpCreateBook || op == OpUpdateBook
}

// Status is the outcome code recorded on a completion.
type Status string

const (
	StatusOK              Status = "ok"
	StatusOutOfRange      Status = "out_of_range"
	StatusNotOwner        Status = "not_owner"
	StatusMalformedRecord Status = "malformed_record"
)

// Invocation records one call delivered by the host.
type Invocation struct {
	ID     string   `json:"id"` // Content-addressed hash
	Token  string   `json:"token"`
	Seq    int64    `json:"seq"` // Logical clock
	Op     Op       `json:"op"`
	Caller Identity `json:"caller"`
	Args   Object   `json:"args"`
}

// Completion records the outcome of an invocation.
type Completion struct {
	ID           string `json:"id"`
	InvocationID string `json:"invocation_id"`
	Seq          int64  `json:"seq"`
	Status       Status `json:"status"`
	Result       Object `json:"result"`
}

// Call is a journaled invocation together with its completion.
type Call struct {
	Invocation Invocation `json:"invocation"`
	Completion Completion `json:"completion"`
}
