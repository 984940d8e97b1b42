package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcelom97/scimgateway/scim"
)

// unwrapVersion strips the weak-ETag wrapper (W/"...") a resource's
// meta.Version carries, recovering the bare opaque token the store compares
// If-Match/expectedVersion against.
func unwrapVersion(v string) string {
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

// AddMember adds userID to group groupID's membership, idempotently: if
// the user is already a member this is a no-op that still returns the
// current group, matching spec.md's membership-as-a-set semantics. Free
// function rather than a Repo[*scim.Group] method because Go generics
// don't allow methods specialized to one type argument.
func AddMember(ctx context.Context, groups *Repo[*scim.Group], tenantID, groupID, userID string) (*scim.Group, error) {
	group, err := groups.Read(ctx, tenantID, groupID)
	if err != nil {
		return nil, err
	}
	for _, m := range group.Members {
		if m.Value == userID {
			return group, nil
		}
	}

	patch := &scim.PatchOp{
		Schemas: []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		Operations: []scim.PatchOperation{
			{Op: "add", Path: "members", Value: []scim.MemberRef{{Value: userID, Type: "User"}}},
		},
	}
	return groups.Patch(ctx, tenantID, groupID, patch, unwrapVersion(group.Meta.Version))
}

// RemoveMember removes userID from group groupID's membership,
// idempotently: removing an absent member is a no-op success.
func RemoveMember(ctx context.Context, groups *Repo[*scim.Group], tenantID, groupID, userID string) (*scim.Group, error) {
	group, err := groups.Read(ctx, tenantID, groupID)
	if err != nil {
		return nil, err
	}
	present := false
	for _, m := range group.Members {
		if m.Value == userID {
			present = true
			break
		}
	}
	if !present {
		return group, nil
	}

	patch := &scim.PatchOp{
		Schemas: []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		Operations: []scim.PatchOperation{
			{Op: "remove", Path: fmt.Sprintf(`members[value eq "%s"]`, userID)},
		},
	}
	return groups.Patch(ctx, tenantID, groupID, patch, unwrapVersion(group.Meta.Version))
}
