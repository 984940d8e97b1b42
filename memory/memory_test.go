package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelom97/scimgateway/scim"
)

func TestAttributeSelection(t *testing.T) {
	memPlugin := New("test")
	getter := NewGetter(memPlugin)

	user := &scim.User{
		UserName: "john.doe",
		Active:   scim.Bool(true),
		Schemas:  []string{scim.SchemaUser},
	}
	user.Name = &scim.Name{GivenName: "John", FamilyName: "Doe"}

	ctx := context.Background()
	_, err := memPlugin.CreateUser(ctx, "test", user)
	require.NoError(t, err)

	// attributes=userName: core attributes stay, name is filtered out
	response, err := getter.GetUsers(ctx, "test", scim.QueryParams{Attributes: []string{"userName"}})
	require.NoError(t, err)
	require.Len(t, response.Resources, 1)

	result := response.Resources[0]
	assert.Equal(t, "john.doe", result.UserName)
	assert.NotEmpty(t, result.ID)
	assert.NotEmpty(t, result.Schemas)
	assert.Nil(t, result.Name, "name should be filtered out when not requested")

	// attributes=userName,name: name comes back
	response2, err := getter.GetUsers(ctx, "test", scim.QueryParams{Attributes: []string{"userName", "name"}})
	require.NoError(t, err)
	result2 := response2.Resources[0]
	assert.Equal(t, "john.doe", result2.UserName)
	require.NotNil(t, result2.Name)
	assert.Equal(t, "John", result2.Name.GivenName)

	// no attributes filter: everything comes back
	response3, err := getter.GetUsers(ctx, "test", scim.QueryParams{})
	require.NoError(t, err)
	result3 := response3.Resources[0]
	assert.Equal(t, "john.doe", result3.UserName)
	require.NotNil(t, result3.Active)
	assert.True(t, *result3.Active)
	assert.NotNil(t, result3.Name)
}

func TestGetUserWithAttributes(t *testing.T) {
	memPlugin := New("test")
	getter := NewGetter(memPlugin)

	user := &scim.User{
		UserName: "jane.doe",
		Active:   scim.Bool(true),
		Schemas:  []string{scim.SchemaUser},
	}

	ctx := context.Background()
	created, err := memPlugin.CreateUser(ctx, "test", user)
	require.NoError(t, err)

	result, err := getter.GetUser(ctx, "test", created.ID, []string{"userName"})
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", result.UserName)
	assert.NotEmpty(t, result.ID)
}

func TestDeleteAndNotFound(t *testing.T) {
	memPlugin := New("test")
	getter := NewGetter(memPlugin)
	ctx := context.Background()

	created, err := memPlugin.CreateUser(ctx, "test", &scim.User{UserName: "temp"})
	require.NoError(t, err)

	require.NoError(t, getter.DeleteUser(ctx, "test", created.ID))

	_, err = getter.GetUser(ctx, "test", created.ID, nil)
	assert.Error(t, err)
}
