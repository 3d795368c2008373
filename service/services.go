// engine/service/services.go
package service

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/dev-mohitbeniwal/aegis/engine/audit"
	"github.com/dev-mohitbeniwal/aegis/engine/cache"
	"github.com/dev-mohitbeniwal/aegis/engine/dao"
	"github.com/dev-mohitbeniwal/aegis/engine/invalidation"
	"github.com/dev-mohitbeniwal/aegis/engine/resilience"
	"github.com/dev-mohitbeniwal/aegis/engine/util"
)

type Services struct {
	Permission IPermissionService
}

func InitializeServices(
	driver neo4j.Driver,
	tierOne *cache.TierOne,
	tierTwo *cache.TierTwo,
	engine *invalidation.Engine,
	index *invalidation.ReverseIndex,
	registry *resilience.Registry,
	controller *resilience.Controller,
	auditService audit.Service,
	validationUtil *util.ValidationUtil,
	eventBus *util.EventBus,
) (*Services, error) {
	resolverDAO := dao.NewResolverDAO(driver)
	facade := cache.NewFacade(tierOne, tierTwo, resolverDAO, index)

	services := &Services{
		Permission: NewPermissionService(facade, engine, registry, controller, auditService, validationUtil, eventBus),
	}

	return services, nil
}
