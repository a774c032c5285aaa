package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerRoutes(e *echo.Echo) {
	api := e.Group("/api")

	api.GET("/entities/:id", s.getEntityHandler)
	api.GET("/relationships/:id", s.getRelationshipHandler)
	api.GET("/communities", s.getCommunitiesHandler)
	api.GET("/communities/:id", s.getCommunityHandler)
	api.GET("/communities/:id/entities", s.getCommunityEntitiesHandler)
}

func (s *Server) getEntityHandler(c echo.Context) error {
	ctx := c.Request().Context()

	entity, err := s.storage.Entity(ctx, c.Param("id"))
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if entity == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "entity not found"})
	}
	return c.JSON(http.StatusOK, entity)
}

func (s *Server) getRelationshipHandler(c echo.Context) error {
	ctx := c.Request().Context()

	relationship, err := s.storage.Relationship(ctx, c.Param("id"))
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if relationship == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "relationship not found"})
	}
	return c.JSON(http.StatusOK, relationship)
}

func (s *Server) getCommunitiesHandler(c echo.Context) error {
	ctx := c.Request().Context()

	communities, err := s.storage.Communities(ctx)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, communities)
}

func (s *Server) getCommunityHandler(c echo.Context) error {
	ctx := c.Request().Context()

	clusterID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid cluster id"})
	}

	community, err := s.storage.Community(ctx, clusterID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if community == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "community not found"})
	}
	return c.JSON(http.StatusOK, community)
}

func (s *Server) getCommunityEntitiesHandler(c echo.Context) error {
	ctx := c.Request().Context()

	clusterID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid cluster id"})
	}

	entities, err := s.storage.CommunityEntities(ctx, clusterID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entities)
}
