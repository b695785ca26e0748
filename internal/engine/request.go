package engine

import (
	"errors"
	"math"
	"slices"

	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/library"
)

// Argument and result keys.
const (
	ArgName     = "name"
	ArgCategory = "category"
	ArgAuthor   = "author"
	ArgIndex    = "index"
	ArgOwner    = "owner"

	ResultIndex   = "index"
	ResultMessage = "message"
	ResultBooks   = "books"
)

// Request is one call into the library on behalf of Caller.
type Request struct {
	Op     ir.Op
	Caller ir.Identity
	Args   ir.Object
}

// CreateBookRequest builds a create_book request registering owner as the
// new book's owner. Caller and owner may differ.
func CreateBookRequest(caller, owner ir.Identity, name, category, author string) Request {
	return Request{
		Op:     ir.OpCreateBook,
		Caller: caller,
		Args: ir.Object{
			ArgName:     name,
			ArgCategory: category,
			ArgAuthor:   author,
			ArgOwner:    string(owner),
		},
	}
}

// UpdateBookRequest builds an update_book request. Nil patch fields are
// omitted from the arguments.
func UpdateBookRequest(caller ir.Identity, index uint32, patch library.Patch) Request {
	args := ir.Object{ArgIndex: int64(index)}
	if patch.Name != nil {
		args[ArgName] = *patch.Name
	}
	if patch.Category != nil {
		args[ArgCategory] = *patch.Category
	}
	if patch.Author != nil {
		args[ArgAuthor] = *patch.Author
	}
	return Request{Op: ir.OpUpdateBook, Caller: caller, Args: args}
}

// BooksByOwnerRequest builds a get_books_by_owner_id request.
func BooksByOwnerRequest(caller, owner ir.Identity) Request {
	return Request{
		Op:     ir.OpBooksByOwner,
		Caller: caller,
		Args:   ir.Object{ArgOwner: string(owner)},
	}
}

// Response carries the journaled call produced by a request.
type Response struct {
	Call ir.Call
}

// Status returns the completion status.
func (r Response) Status() ir.Status {
	return r.Call.Completion.Status
}

// OK reports whether the operation succeeded.
func (r Response) OK() bool {
	return r.Call.Completion.Status == ir.StatusOK
}

// Index returns the record index assigned by create_book.
func (r Response) Index() (uint32, bool) {
	v, ok := r.Call.Completion.Result.Int(ResultIndex)
	if !ok || v < 0 || v > math.MaxUint32 {
		return 0, false
	}
	return uint32(v), true
}

// Message returns the status string of update_book.
func (r Response) Message() string {
	s, _ := r.Call.Completion.Result.String(ResultMessage)
	return s
}

// Books returns the records returned by get_books_by_owner_id.
func (r Response) Books() []string {
	books, _ := r.Call.Completion.Result.Strings(ResultBooks)
	return books
}

// allowedArgs lists the argument keys each operation accepts.
var allowedArgs = map[ir.Op][]string{
	ir.OpCreateBook:   {ArgName, ArgCategory, ArgAuthor, ArgOwner},
	ir.OpUpdateBook:   {ArgIndex, ArgName, ArgCategory, ArgAuthor},
	ir.OpBooksByOwner: {ArgOwner},
}

// apply runs op against lib. A RuntimeError is returned only for arguments
// that cannot be decoded, in which case lib is untouched.
func apply(lib *library.Library, op ir.Op, caller ir.Identity, args ir.Object) (ir.Status, ir.Object, error) {
	if err := checkArgKeys(op, args); err != nil {
		return "", nil, err
	}

	switch op {
	case ir.OpCreateBook:
		var fields [4]string
		for i, key := range []string{ArgName, ArgCategory, ArgAuthor, ArgOwner} {
			v, err := requiredString(op, args, key)
			if err != nil {
				return "", nil, err
			}
			fields[i] = v
		}
		index := lib.CreateBook(fields[0], fields[1], fields[2], ir.Identity(fields[3]))
		return ir.StatusOK, ir.Object{ResultIndex: int64(index)}, nil

	case ir.OpUpdateBook:
		raw, ok := args.Int(ArgIndex)
		if !ok {
			return "", nil, newInvalidArgsError(string(op), ArgIndex, "must be an integer")
		}
		if raw < 0 || raw > math.MaxUint32 {
			return "", nil, newInvalidArgsError(string(op), ArgIndex, "must fit in 32 bits unsigned")
		}
		var patch library.Patch
		fields := []struct {
			key string
			dst **string
		}{
			{ArgName, &patch.Name},
			{ArgCategory, &patch.Category},
			{ArgAuthor, &patch.Author},
		}
		for _, f := range fields {
			v, present, err := optionalString(op, args, f.key)
			if err != nil {
				return "", nil, err
			}
			if present {
				*f.dst = &v
			}
		}
		err := lib.UpdateBook(caller, uint32(raw), patch)
		return updateStatus(err), ir.Object{ResultMessage: library.Status(err)}, nil

	case ir.OpBooksByOwner:
		owner, err := requiredString(op, args, ArgOwner)
		if err != nil {
			return "", nil, err
		}
		return ir.StatusOK, ir.Object{ResultBooks: lib.BooksByOwner(ir.Identity(owner))}, nil

	default:
		return "", nil, newUnknownOpError(string(op))
	}
}

// checkArgKeys rejects argument keys op does not accept. Keys are checked in
// sorted order so the reported key is deterministic.
func checkArgKeys(op ir.Op, args ir.Object) error {
	allowed, ok := allowedArgs[op]
	if !ok {
		return nil
	}
	for _, key := range args.SortedKeys() {
		if !slices.Contains(allowed, key) {
			return newInvalidArgsError(string(op), key, "is not a known argument")
		}
	}
	return nil
}

func updateStatus(err error) ir.Status {
	switch {
	case err == nil:
		return ir.StatusOK
	case errors.Is(err, library.ErrOutOfRange):
		return ir.StatusOutOfRange
	case errors.Is(err, library.ErrNotOwner):
		return ir.StatusNotOwner
	default:
		return ir.StatusMalformedRecord
	}
}

func requiredString(op ir.Op, args ir.Object, key string) (string, error) {
	v, present, err := optionalString(op, args, key)
	if err != nil {
		return "", err
	}
	if !present {
		return "", newInvalidArgsError(string(op), key, "is required")
	}
	return v, nil
}

func optionalString(op ir.Op, args ir.Object, key string) (string, bool, error) {
	raw, present := args[key]
	if !present {
		return "", false, nil
	}
	v, ok := raw.(string)
	if !ok {
		return "", false, newInvalidArgsError(string(op), key, "must be a string")
	}
	return v, true, nil
}
