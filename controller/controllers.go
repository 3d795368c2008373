// engine/controller/controllers.go
package controller

import "github.com/dev-mohitbeniwal/aegis/engine/service"

type Controllers struct {
	Permission *PermissionController
	Resilience *ResilienceController
}

func InitializeControllers(services *service.Services) *Controllers {
	return &Controllers{
		Permission: NewPermissionController(services.Permission),
		Resilience: NewResilienceController(services.Permission),
	}
}
