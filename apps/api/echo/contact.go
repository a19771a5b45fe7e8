package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/contact"
)

type contactApi struct {
	svc *contact.Service
}

func registerContactAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts Options) {
	api := contactApi{svc: opts.ContactSvc}

	cg := g.Group("/contacts", jwt, contactMiddleware(opts.ContactSvc))
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
}

// Handlers

func (api *contactApi) query(ctx echo.Context) error {
	role, err := core.ParseRole(ctx.QueryParam("role"))
	if err != nil {
		return core.NewFieldValidationError("role", errUnsupportedQuery)
	}
	contacts, err := api.svc.Filter(ctx.Request().Context(), contact.QueryFilter{
		Search: ctx.QueryParam("search"),
		Role:   role,
	})
	if err != nil {
		return errors.Wrap(err, "filtering contacts")
	}
	return ctx.JSON(http.StatusOK, contacts)
}

func (api *contactApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == contact.ErrNotFound {
			return errContactNotFound
		}
		return errors.Wrap(err, "getting contact")
	}
	return ctx.JSON(http.StatusOK, c)
}
