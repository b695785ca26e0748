package library

import "strings"

// Delimiter joins the three fields of an encoded record.
const Delimiter = ";"

// Field positions within an encoded record.
const (
	FieldName = iota
	FieldCategory
	FieldAuthor

	fieldCount
)

// EncodeRecord joins name, category and author with Delimiter.
// Fields are not escaped: a field containing the delimiter yields a record
// that decodes into more than three parts.
func EncodeRecord(name, category, author string) string {
	return name + Delimiter + category + Delimiter + author
}

// DecodeRecord splits an encoded record on Delimiter.
// Every part is returned, so a record written with a delimiter inside a
// field decodes into more than three parts.
func DecodeRecord(encoded string) []string {
	return strings.Split(encoded, Delimiter)
}

// Book is the logical view of a record with exactly three fields.
type Book struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Author   string `json:"author" yaml:"author"`
}

// ParseBook decodes a record into a Book. It reports false when the record
// does not hold exactly three fields.
func ParseBook(encoded string) (Book, bool) {
	parts := DecodeRecord(encoded)
	if len(parts) != fieldCount {
		return Book{}, false
	}
	return Book{Name: parts[FieldName], Category: parts[FieldCategory], Author: parts[FieldAuthor]}, true
}

// Encode returns the composite encoding of b.
func (b Book) Encode() string {
	return EncodeRecord(b.Name, b.Category, b.Author)
}
