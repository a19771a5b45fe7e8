package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/contact"
	"github.com/trezcool/madrasa/core/message"
)

type messageApi struct {
	svc        *message.Service
	contacts   *contact.Service
	metrics    *Metrics
	validate   *validator.Validate
	translator ut.Translator
}

func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts Options) {
	api := messageApi{
		svc:        opts.MessageSvc,
		contacts:   opts.ContactSvc,
		metrics:    opts.Metrics,
		validate:   opts.Validate,
		translator: opts.Translator,
	}

	ag := g.Group("", jwt, contactMiddleware(opts.ContactSvc))
	ag.GET("/messages", api.history)
	ag.POST("/messages", api.post)
	ag.GET("/conversations", api.conversations)
}

// Handlers

func (api *messageApi) history(ctx echo.Context) error {
	usr, err := getContextContact(ctx, api.contacts)
	if err != nil {
		return errors.Wrap(err, "getting context contact")
	}
	peerID := core.CleanString(ctx.QueryParam("peerId"))
	if peerID == "" {
		return core.NewFieldValidationError("peerId", "this field is required")
	}

	msgs, err := api.svc.History(ctx.Request().Context(), usr.ID, peerID)
	observe(api.metrics.HistoryFetches, err)
	if err != nil {
		return errors.Wrap(err, "fetching history")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) post(ctx echo.Context) error {
	usr, err := getContextContact(ctx, api.contacts)
	if err != nil {
		return errors.Wrap(err, "getting context contact")
	}
	var data message.Request
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to message.Request")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	switch data.Action {
	case message.ActionSend:
		return api.send(ctx, usr, data)
	default: // message.ActionMarkRead
		return api.markRead(ctx, usr, data)
	}
}

func (api *messageApi) send(ctx echo.Context, usr contact.Contact, data message.Request) error {
	msg, err := api.svc.Send(ctx.Request().Context(), usr.ID, data)
	observe(api.metrics.MessagesSent, err)
	if err != nil {
		if errors.Cause(err) == message.ErrPeerNotFound {
			return errPeerNotFound
		}
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) markRead(ctx echo.Context, usr contact.Contact, data message.Request) error {
	n, err := api.svc.MarkRead(ctx.Request().Context(), usr.ID, data.PeerID)
	observe(api.metrics.MarkReadUpdates, err)
	if err != nil {
		return errors.Wrap(err, "marking messages read")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": "messages marked as read", "updated": n})
}

func (api *messageApi) conversations(ctx echo.Context) error {
	usr, err := getContextContact(ctx, api.contacts)
	if err != nil {
		return errors.Wrap(err, "getting context contact")
	}
	convs, err := api.svc.Conversations(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing conversations")
	}
	return ctx.JSON(http.StatusOK, convs)
}
