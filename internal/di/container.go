package di

import (
	"github.com/zonelab/geozone/internal/handler"
	"github.com/zonelab/geozone/internal/repository"
	"github.com/zonelab/geozone/internal/service"
	"github.com/zonelab/geozone/pkg/database"
	"github.com/zonelab/geozone/pkg/redis"
)

// Container holds all dependencies for the zone service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	ZoneRepo    repository.ZoneRepository
	HistoryRepo repository.HistoryRepository
	PermRepo    repository.PermissionRepository
	UserRepo    repository.UserRepository

	// Services
	PermissionService service.PermissionService
	ZoneService       service.ZoneService
	WorkflowService   service.WorkflowService
	CatalogService    service.CatalogService
	UserService       service.UserService

	// Handlers
	HealthHandler *handler.HealthHandler
	ZoneHandler   *handler.ZoneHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB    *database.PostgresDB
	Redis *redis.Client
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:    cfg.DB,
		Redis: cfg.Redis,
	}

	// Initialize repositories
	c.ZoneRepo = repository.NewPostgresZoneRepository(c.DB.Pool())
	c.HistoryRepo = repository.NewPostgresHistoryRepository(c.DB.Pool())
	c.PermRepo = repository.NewPostgresPermissionRepository(c.DB.Pool())
	c.UserRepo = repository.NewPostgresUserRepository(c.DB.Pool())

	// Initialize services
	c.PermissionService = service.NewPermissionService(c.PermRepo, c.ZoneRepo, c.UserRepo)
	c.ZoneService = service.NewZoneService(c.ZoneRepo, c.PermRepo, c.UserRepo, c.PermissionService)
	c.WorkflowService = service.NewWorkflowService(c.ZoneRepo, c.HistoryRepo, c.PermissionService)
	c.CatalogService = service.NewCatalogService(c.ZoneRepo)
	c.UserService = service.NewUserService(c.UserRepo)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.ZoneHandler = handler.NewZoneHandler(c.ZoneService, c.WorkflowService, c.PermissionService, c.CatalogService)

	return c
}
