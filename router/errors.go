package router

import (
	"net/http"

	"github.com/marcelom97/scimgateway/scimerr"
)

// mapError translates a scimerr.Error (or any other error) into the
// triple the teacher's Handler.WriteError needs, generalizing
// scim/server.go's handlePluginError one-off type switch into the single
// shared table scimerr.Map already provides.
func mapError(err error) (status int, scimType string, detail string) {
	if scErr, ok := scimerr.AsError(err); ok {
		status, scimType = scErr.Status(), scErr.ScimType()
		return status, scimType, scErr.Detail
	}
	return http.StatusInternalServerError, "", err.Error()
}
