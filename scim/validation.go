package scim

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	userNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._@\-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// Validator checks a resource or patch request against the SCIM core
// schema's required-field and format rules. Domain-specific invariants
// (length caps, at-most-one-primary, address/member type enums) layer on
// top of this in repository.ValidateUser/ValidateGroup.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) ValidateUser(user *User) error {
	if user == nil {
		return ErrInvalidValue("user cannot be nil")
	}
	if strings.TrimSpace(user.UserName) == "" {
		return ErrInvalidValue("userName is required")
	}
	if !userNameRegex.MatchString(user.UserName) {
		return ErrInvalidValue("userName contains invalid characters")
	}
	for _, email := range user.Emails {
		if err := v.validateEmail(email.Value); err != nil {
			return err
		}
	}
	if len(user.Schemas) == 0 {
		user.Schemas = []string{SchemaUser}
	}
	return nil
}

func (v *Validator) ValidateGroup(group *Group) error {
	if group == nil {
		return ErrInvalidValue("group cannot be nil")
	}
	if strings.TrimSpace(group.DisplayName) == "" {
		return ErrInvalidValue("displayName is required")
	}
	if len(group.Schemas) == 0 {
		group.Schemas = []string{SchemaGroup}
	}
	return nil
}

// ValidatePatchOp checks a PATCH request's envelope and every operation in
// it; repository.Repo.Patch calls this once before applying any operation,
// separately from the per-operation re-validation it runs after each op.
func (v *Validator) ValidatePatchOp(patch *PatchOp) error {
	if patch == nil {
		return ErrInvalidSyntax("patch operation cannot be nil")
	}
	if !slices.Contains(patch.Schemas, SchemaPatchOp) {
		return ErrInvalidValue(fmt.Sprintf("invalid schema, expected %s", SchemaPatchOp))
	}
	if len(patch.Operations) == 0 {
		return ErrInvalidValue("at least one operation is required")
	}
	for i, op := range patch.Operations {
		if err := v.validatePatchOperation(op); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

func (v *Validator) validatePatchOperation(op PatchOperation) error {
	opLower := strings.ToLower(op.Op)
	if opLower != "add" && opLower != "remove" && opLower != "replace" {
		return ErrInvalidValue(fmt.Sprintf("invalid op: %s", op.Op))
	}
	if opLower == "remove" && op.Path == "" {
		return ErrNoTarget("path is required for remove operation")
	}
	if (opLower == "add" || opLower == "replace") && op.Value == nil && op.Path == "" {
		return ErrInvalidValue(fmt.Sprintf("value is required for %s operation", op.Op))
	}
	return nil
}

func (v *Validator) validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidValue(fmt.Sprintf("invalid email format: %s", email))
	}
	return nil
}
