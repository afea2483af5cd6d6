package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/notepad/internal/database"
	"github.com/mdouchement/notepad/internal/server/hub"
	"github.com/mdouchement/notepad/internal/server/middlewares"
	"github.com/sirupsen/logrus"
)

// A Controller is an Iversion Of Control pattern used to init the server package.
type Controller struct {
	Version  string
	Database database.Client
	Hub      *hub.Hub
	Logger   logrus.FieldLogger
	// JWT params
	SigningKey []byte
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl Controller) *echo.Echo {
	engine := echo.New()
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, "apikey", "Prefer"},
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPatch},
		ExposeHeaders: []string{"Content-Range"},
	}))
	engine.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Path(), "/realtime/")
		},
	}))

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	engine.Binder = middlewares.NewBinder()
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler(ctrl.Logger)

	////////////
	// Router //
	////////////

	router := engine.Group("")
	restricted := router.Group("")
	restricted.Use(middlewares.APIKey(ctrl.SigningKey))
	restricted.Use(middlewares.Role(middlewares.RoleAnon, middlewares.RoleService))

	// generic handlers
	//
	version := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	}
	router.GET("/", version)
	router.GET("/version", version)
	router.HEAD("/rest/v1", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	//
	// table handlers
	//
	rest := &rest{
		db:  ctrl.Database,
		hub: ctrl.Hub,
	}
	restricted.GET("/rest/v1/:table", rest.Select)
	restricted.POST("/rest/v1/:table", rest.Upsert)
	restricted.PATCH("/rest/v1/:table", rest.Update)

	//
	// realtime handlers
	//
	realtime := &realtime{
		hub:      ctrl.Hub,
		log:      ctrl.Logger,
		upgrader: upgrader(),
	}
	restricted.GET("/realtime/v1/websocket", realtime.Websocket)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
