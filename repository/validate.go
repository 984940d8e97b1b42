package repository

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/marcelom97/scimgateway/scim"
	"github.com/marcelom97/scimgateway/scimerr"
	"github.com/marcelom97/scimgateway/store"
)

const maxStringLength = 256

var phoneRegex = regexp.MustCompile(`^\+?[0-9 ().\-]{3,32}$`)

var addressTypes = map[string]bool{"work": true, "home": true, "other": true}
var memberTypes = map[string]bool{"User": true, "Group": true}

// ValidateUser extends scim.Validator.ValidateUser with the length caps,
// phone/address format, and at-most-one-primary checks spec.md §4.3
// requires beyond what the teacher's validator implements.
func ValidateUser(u *scim.User) error {
	v := scim.NewValidator()
	if err := v.ValidateUser(u); err != nil {
		return toScimerr(err)
	}
	if len(u.UserName) > maxStringLength {
		return scimerr.InvalidSyntax("userName exceeds maximum length")
	}
	if len(u.DisplayName) > maxStringLength {
		return scimerr.InvalidSyntax("displayName exceeds maximum length")
	}
	if countPrimary(len(u.Emails), func(i int) bool { return bool(u.Emails[i].Primary) }) > 1 {
		return scimerr.InvalidSyntax("at most one email may be marked primary")
	}
	if countPrimary(len(u.PhoneNumbers), func(i int) bool { return bool(u.PhoneNumbers[i].Primary) }) > 1 {
		return scimerr.InvalidSyntax("at most one phoneNumber may be marked primary")
	}
	if countPrimary(len(u.IMs), func(i int) bool { return bool(u.IMs[i].Primary) }) > 1 {
		return scimerr.InvalidSyntax("at most one im may be marked primary")
	}
	if countPrimary(len(u.Photos), func(i int) bool { return bool(u.Photos[i].Primary) }) > 1 {
		return scimerr.InvalidSyntax("at most one photo may be marked primary")
	}
	if countPrimary(len(u.Addresses), func(i int) bool { return u.Addresses[i].Primary }) > 1 {
		return scimerr.InvalidSyntax("at most one address may be marked primary")
	}
	for _, p := range u.PhoneNumbers {
		if p.Value != "" && !phoneRegex.MatchString(p.Value) {
			return scimerr.InvalidSyntax(fmt.Sprintf("invalid phoneNumber format: %s", p.Value))
		}
	}
	for _, a := range u.Addresses {
		if a.Type != "" && !addressTypes[a.Type] {
			return scimerr.InvalidSyntax(fmt.Sprintf("invalid address type: %s", a.Type))
		}
	}
	return nil
}

// ValidateGroup extends scim.Validator.ValidateGroup with length caps and
// member-type format checks.
func ValidateGroup(g *scim.Group) error {
	v := scim.NewValidator()
	if err := v.ValidateGroup(g); err != nil {
		return toScimerr(err)
	}
	if len(g.DisplayName) > maxStringLength {
		return scimerr.InvalidSyntax("displayName exceeds maximum length")
	}
	for _, m := range g.Members {
		if m.Type != "" && !memberTypes[m.Type] {
			return scimerr.InvalidSyntax(fmt.Sprintf("invalid member type: %s", m.Type))
		}
	}
	return nil
}

func countPrimary(n int, isPrimary func(int) bool) int {
	count := 0
	for i := 0; i < n; i++ {
		if isPrimary(i) {
			count++
		}
	}
	return count
}

func toScimerr(err error) error {
	if scimErr, ok := err.(*scim.SCIMError); ok {
		switch scimErr.ScimType {
		case scim.ScimTypeInvalidFilter:
			return scimerr.InvalidFilter(scimErr.Detail)
		case scim.ScimTypeInvalidPath:
			return scimerr.InvalidPath(scimErr.Detail)
		case scim.ScimTypeInvalidSyntax:
			return scimerr.InvalidSyntax(scimErr.Detail)
		default:
			return scimerr.InvalidSyntax(scimErr.Detail)
		}
	}
	return scimerr.InvalidSyntax(strings.TrimSpace(err.Error()))
}

func UserNaturalKey(u *scim.User) store.NaturalKey {
	return store.NaturalKey{Field: "userName", Value: u.UserName}
}

func GroupNaturalKey(g *scim.Group) store.NaturalKey {
	return store.NaturalKey{Field: "displayName", Value: g.DisplayName}
}
