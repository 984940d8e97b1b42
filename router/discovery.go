package router

import "net/http"

func (rt *Router) handleServiceProviderConfig(w http.ResponseWriter, r *http.Request) {
	rt.handler.WriteJSON(w, http.StatusOK, scimServiceProviderConfig())
}

func (rt *Router) handleResourceTypes(w http.ResponseWriter, r *http.Request) {
	rt.handler.WriteJSON(w, http.StatusOK, map[string]any{"Resources": scimResourceTypes()})
}

func (rt *Router) handleSchemas(w http.ResponseWriter, r *http.Request) {
	rt.handler.WriteJSON(w, http.StatusOK, scimSchemas())
}
