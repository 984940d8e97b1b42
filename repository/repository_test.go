package repository

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelom97/scimgateway/scim"
	"github.com/marcelom97/scimgateway/scimerr"
	"github.com/marcelom97/scimgateway/store/memstore"
)

func newUserRepo(t *testing.T) *Repo[*scim.User] {
	t.Helper()
	return NewUserRepo(memstore.New())
}

func newGroupRepo(t *testing.T) *Repo[*scim.Group] {
	t.Helper()
	return NewGroupRepo(memstore.New())
}

func TestRepoCreateAssignsVersionOne(t *testing.T) {
	repo := newUserRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "tenant-a", &scim.User{UserName: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, `W/"1"`, created.Meta.Version)
	assert.Equal(t, "tenant-a", created.TenantID)
}

func TestRepoReplaceIncrementsVersion(t *testing.T) {
	repo := newUserRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "tenant-a", &scim.User{UserName: "alice"})
	require.NoError(t, err)

	replaced, err := repo.Replace(ctx, "tenant-a", created.ID, &scim.User{UserName: "alice2"}, "1")
	require.NoError(t, err)
	assert.Equal(t, `W/"2"`, replaced.Meta.Version)
	assert.Equal(t, "alice2", replaced.UserName)
	assert.Equal(t, created.ID, replaced.ID)
}

func TestRepoReplaceRejectsStaleVersion(t *testing.T) {
	repo := newUserRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "tenant-a", &scim.User{UserName: "alice"})
	require.NoError(t, err)

	_, err = repo.Replace(ctx, "tenant-a", created.ID, &scim.User{UserName: "alice3"}, "99")
	require.Error(t, err)
	serr, ok := scimerr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, scimerr.KindVersionMismatch, serr.Kind)
}

func TestRepoTenantIsolation(t *testing.T) {
	repo := newUserRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "tenant-a", &scim.User{UserName: "alice"})
	require.NoError(t, err)

	_, err = repo.Read(ctx, "tenant-b", created.ID)
	require.Error(t, err)
	serr, ok := scimerr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, scimerr.KindNotFound, serr.Kind)
}

func TestRepoCreateUniquenessConflict(t *testing.T) {
	repo := newUserRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "tenant-a", &scim.User{UserName: "alice"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, "tenant-a", &scim.User{UserName: "alice"})
	require.Error(t, err)
	serr, ok := scimerr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, scimerr.KindUniqueness, serr.Kind)
}

func TestRepoUniquenessScopedPerTenant(t *testing.T) {
	repo := newUserRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "tenant-a", &scim.User{UserName: "alice"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, "tenant-b", &scim.User{UserName: "alice"})
	assert.NoError(t, err)
}

func TestRepoPatchAddEmailIncrementsVersion(t *testing.T) {
	repo := newUserRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "tenant-a", &scim.User{UserName: "bob"})
	require.NoError(t, err)

	patch := &scim.PatchOp{
		Schemas: []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		Operations: []scim.PatchOperation{
			{Op: "add", Path: "emails", Value: []scim.Email{{Value: "bob@example.com", Type: "work", Primary: true}}},
		},
	}
	patched, err := repo.Patch(ctx, "tenant-a", created.ID, patch, "1")
	require.NoError(t, err)
	assert.Equal(t, `W/"2"`, patched.Meta.Version)
	require.Len(t, patched.Emails, 1)
	assert.Equal(t, "bob@example.com", patched.Emails[0].Value)
}

// TestRepoPatchSecondPrimaryFailsAtomically pins spec scenario 3: adding a
// second primary email must fail with 400 invalidSyntax and leave the
// resource's stored version untouched, since the op is rejected before
// commit.
func TestRepoPatchSecondPrimaryFailsAtomically(t *testing.T) {
	repo := newUserRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "tenant-a", &scim.User{
		UserName: "carol",
		Emails:   []scim.Email{{Value: "carol@example.com", Type: "work", Primary: true}},
	})
	require.NoError(t, err)

	patch := &scim.PatchOp{
		Schemas: []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		Operations: []scim.PatchOperation{
			{Op: "add", Path: "emails", Value: []scim.Email{{Value: "carol2@example.com", Type: "home", Primary: true}}},
		},
	}
	_, err = repo.Patch(ctx, "tenant-a", created.ID, patch, "1")
	require.Error(t, err)
	serr, ok := scimerr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, scimerr.KindInvalidSyntax, serr.Kind)
	assert.Equal(t, http.StatusBadRequest, serr.Status())

	current, err := repo.Read(ctx, "tenant-a", created.ID)
	require.NoError(t, err)
	assert.Equal(t, `W/"1"`, current.Meta.Version)
}

func TestRepoDeleteThenReadNotFound(t *testing.T) {
	repo := newUserRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "tenant-a", &scim.User{UserName: "dave"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "tenant-a", created.ID))

	_, err = repo.Read(ctx, "tenant-a", created.ID)
	require.Error(t, err)
	serr, ok := scimerr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, scimerr.KindNotFound, serr.Kind)
}

func TestAddMemberIdempotent(t *testing.T) {
	groups := newGroupRepo(t)
	ctx := context.Background()

	group, err := groups.Create(ctx, "tenant-a", &scim.Group{DisplayName: "engineers"})
	require.NoError(t, err)
	assert.Equal(t, `W/"1"`, group.Meta.Version)

	updated, err := AddMember(ctx, groups, "tenant-a", group.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, `W/"2"`, updated.Meta.Version)
	require.Len(t, updated.Members, 1)
	assert.Equal(t, "user-1", updated.Members[0].Value)

	// adding the same member again is a no-op: no version bump, no duplicate.
	again, err := AddMember(ctx, groups, "tenant-a", group.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, `W/"2"`, again.Meta.Version)
	assert.Len(t, again.Members, 1)
}

func TestRemoveMemberIdempotent(t *testing.T) {
	groups := newGroupRepo(t)
	ctx := context.Background()

	group, err := groups.Create(ctx, "tenant-a", &scim.Group{DisplayName: "engineers"})
	require.NoError(t, err)

	_, err = AddMember(ctx, groups, "tenant-a", group.ID, "user-1")
	require.NoError(t, err)

	removed, err := RemoveMember(ctx, groups, "tenant-a", group.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, `W/"3"`, removed.Meta.Version)
	assert.Empty(t, removed.Members)

	// removing an absent member again is a no-op success, not an error.
	again, err := RemoveMember(ctx, groups, "tenant-a", group.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, `W/"3"`, again.Meta.Version)
}

func TestValidateUserRejectsSecondaryPrimaryEmailAsInvalidSyntax(t *testing.T) {
	err := ValidateUser(&scim.User{
		UserName: "erin",
		Emails: []scim.Email{
			{Value: "a@example.com", Primary: true},
			{Value: "b@example.com", Primary: true},
		},
	})
	require.Error(t, err)
	serr, ok := scimerr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, scimerr.KindInvalidSyntax, serr.Kind)
	assert.Equal(t, "invalidSyntax", serr.ScimType())
}
