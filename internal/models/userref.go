package models

import (
	"errors"
	"strings"
)

type userRefKind int

const (
	userRefByID userRefKind = iota + 1
	userRefByEmail
)

// UserRef names a user either by id or by email. The zero value is invalid.
type UserRef struct {
	kind  userRefKind
	value string
}

func ByID(id string) UserRef { return UserRef{kind: userRefByID, value: strings.TrimSpace(id)} }

func ByEmail(email string) UserRef {
	return UserRef{kind: userRefByEmail, value: strings.ToLower(strings.TrimSpace(email))}
}

// ParseUserRef builds a UserRef from the two optional request fields. Exactly one must be set.
func ParseUserRef(userID, email string) (UserRef, error) {
	userID, email = strings.TrimSpace(userID), strings.TrimSpace(email)
	switch {
	case userID != "" && email != "":
		return UserRef{}, errors.New("provide either userId or email, not both")
	case userID != "":
		return ByID(userID), nil
	case email != "":
		return ByEmail(email), nil
	}
	return UserRef{}, errors.New("userId or email is required")
}

func (r UserRef) IsEmail() bool { return r.kind == userRefByEmail }

func (r UserRef) IsID() bool { return r.kind == userRefByID }

func (r UserRef) Value() string { return r.value }

func (r UserRef) Valid() bool { return r.kind != 0 && r.value != "" }

func (r UserRef) String() string {
	switch r.kind {
	case userRefByID:
		return "id:" + r.value
	case userRefByEmail:
		return "email:" + r.value
	}
	return "invalid"
}
