// Package ids validates and mints the opaque document identifiers shared by
// every stored entity. Identifiers travel through the domain as 24-character
// hexadecimal strings; only the storage layer converts them to ObjectIDs.
package ids

import (
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	objectIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

	ErrInvalidID = errors.New("invalid identifier")
)

// New returns a freshly minted identifier.
func New() string {
	return primitive.NewObjectID().Hex()
}

// IsValid reports whether value is a well-formed identifier.
func IsValid(value string) bool {
	return objectIDRegex.MatchString(strings.TrimSpace(value))
}

// Validate returns ErrInvalidID unless value is a well-formed identifier.
func Validate(value string) error {
	if !IsValid(value) {
		return ErrInvalidID
	}
	return nil
}

// Normalize trims and lowercases a valid identifier so equal IDs compare equal.
func Normalize(value string) (string, error) {
	value = strings.TrimSpace(value)
	if err := Validate(value); err != nil {
		return "", err
	}
	return strings.ToLower(value), nil
}

// ToObjectID converts a validated identifier for use in storage filters.
func ToObjectID(value string) (primitive.ObjectID, error) {
	normalized, err := Normalize(value)
	if err != nil {
		return primitive.NilObjectID, err
	}
	oid, err := primitive.ObjectIDFromHex(normalized)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}
