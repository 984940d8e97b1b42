package router

import "github.com/marcelom97/scimgateway/scim"

// These thin wrappers exist only so discovery.go doesn't need to import
// scim directly in three different function bodies; GetServiceProviderConfig
// et al. are the scim/discovery.go functions.
func scimServiceProviderConfig() *scim.ServiceProviderConfig {
	return scim.GetServiceProviderConfig(nil)
}

func scimResourceTypes() []scim.ResourceTypeDefinition {
	return scim.GetResourceTypes()
}

func scimSchemas() []any {
	return []any{scim.GetUserSchema(), scim.GetGroupSchema()}
}
