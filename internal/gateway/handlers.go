package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/tgifai/teleworker/internal/condition"
	"github.com/tgifai/teleworker/internal/engine"
	"github.com/tgifai/teleworker/internal/pkg/logs"
	"github.com/tgifai/teleworker/internal/reminder"
)

const adminHeader = "X-Admin-Password"

func (gw *Gateway) registerRoutes() {
	h := gw.httpServer

	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, utils.H{"ok": true})
	})

	rg := h.Group("/reminders")
	rg.GET("", gw.listReminders)
	rg.GET("/:id", gw.getReminder)
	rg.POST("", gw.requireAdmin, gw.createReminder)
	rg.PUT("/:id", gw.requireAdmin, gw.updateReminder)
	rg.DELETE("/:id", gw.requireAdmin, gw.deleteReminder)

	h.GET("/condition", gw.listConditions)
	h.GET("/condition/*path", gw.evaluateCondition("/condition/"))
	h.GET("/microservices/*path", gw.evaluateCondition("/microservices/"))

	h.GET("/automation", gw.automation)
	h.POST("/tick", gw.requireAdmin, gw.tickNow)
}

// requireAdmin checks X-Admin-Password when an admin password is configured.
func (gw *Gateway) requireAdmin(ctx context.Context, c *app.RequestContext) {
	expected := gw.cfg.AdminPassword
	if expected == "" {
		c.Next(ctx)
		return
	}
	got := c.GetHeader(adminHeader)
	if subtle.ConstantTimeCompare(got, []byte(expected)) != 1 {
		c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "unauthorized"})
		return
	}
	c.Next(ctx)
}

type createReminderReq struct {
	Name         string              `json:"name"`
	Message      string              `json:"message"`
	Recipients   reminder.Recipients `json:"chatIds"`
	Schedule     string              `json:"when"`
	ConditionRef string              `json:"apiUrl"`
	Ring         *bool               `json:"ring"`
	Active       *bool               `json:"active"`
}

func (gw *Gateway) listReminders(ctx context.Context, c *app.RequestContext) {
	rs, err := gw.rt.Store.List(ctx)
	if err != nil {
		gw.writeError(ctx, c, err)
		return
	}
	if rs == nil {
		rs = []reminder.Reminder{}
	}
	c.JSON(consts.StatusOK, rs)
}

func (gw *Gateway) getReminder(ctx context.Context, c *app.RequestContext) {
	r, err := gw.rt.Store.Get(ctx, c.Param("id"))
	if err != nil {
		gw.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, r)
}

func (gw *Gateway) createReminder(ctx context.Context, c *app.RequestContext) {
	var req createReminderReq
	if err := sonic.Unmarshal(c.Request.Body(), &req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid json: " + err.Error()})
		return
	}

	r := reminder.Reminder{
		Name:         strings.TrimSpace(req.Name),
		Message:      req.Message,
		Recipients:   req.Recipients,
		Schedule:     strings.TrimSpace(req.Schedule),
		ConditionRef: strings.TrimSpace(req.ConditionRef),
		Active:       true,
	}
	if req.Ring != nil {
		r.Ring = *req.Ring
	}
	if req.Active != nil {
		r.Active = *req.Active
	}

	if err := gw.rt.ValidateReminder(r); err != nil {
		gw.writeError(ctx, c, err)
		return
	}
	if err := gw.rt.Store.Create(ctx, &r); err != nil {
		gw.writeError(ctx, c, err)
		return
	}

	logs.CtxInfo(ctx, "[gateway] created reminder %s (%s)", r.Name, r.ID)
	c.JSON(consts.StatusCreated, r)
}

func (gw *Gateway) updateReminder(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")

	var patch reminder.Patch
	if err := sonic.Unmarshal(c.Request.Body(), &patch); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid json: " + err.Error()})
		return
	}
	if patch.Empty() {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "nothing to update"})
		return
	}

	existing, err := gw.rt.Store.Get(ctx, id)
	if err != nil {
		gw.writeError(ctx, c, err)
		return
	}
	merged := existing
	patch.Apply(&merged)
	if err := gw.rt.ValidateReminder(merged); err != nil {
		gw.writeError(ctx, c, err)
		return
	}

	updated, err := gw.rt.Store.Update(ctx, id, patch)
	if err != nil {
		gw.writeError(ctx, c, err)
		return
	}
	logs.CtxInfo(ctx, "[gateway] updated reminder %s", id)
	c.JSON(consts.StatusOK, updated)
}

func (gw *Gateway) deleteReminder(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	if err := gw.rt.Store.Delete(ctx, id); err != nil {
		gw.writeError(ctx, c, err)
		return
	}
	logs.CtxInfo(ctx, "[gateway] deleted reminder %s", id)
	c.JSON(consts.StatusOK, utils.H{"ok": true})
}

func (gw *Gateway) listConditions(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"conditions": gw.rt.Conditions.Keys()})
}

// evaluateCondition answers "1" or "0" so a registered condition can also be
// used as an external URL gate.
func (gw *Gateway) evaluateCondition(prefix string) func(ctx context.Context, c *app.RequestContext) {
	return func(ctx context.Context, c *app.RequestContext) {
		key := prefix + strings.TrimPrefix(c.Param("path"), "/")

		res, err := gw.rt.Resolver.Evaluate(ctx, key, time.Now())
		switch {
		case errors.Is(err, condition.ErrUnknownCondition):
			c.String(consts.StatusNotFound, "unknown condition")
		case err != nil:
			logs.CtxWarn(ctx, "[gateway] evaluate %s: %v", key, err)
			c.String(consts.StatusBadGateway, "0")
		case res.Trigger:
			c.String(consts.StatusOK, "1")
		default:
			c.String(consts.StatusOK, "0")
		}
	}
}

func (gw *Gateway) automation(ctx context.Context, c *app.RequestContext) {
	rs, err := gw.rt.Store.List(ctx)
	if err != nil {
		gw.writeError(ctx, c, err)
		return
	}
	alarms := gw.rt.Engine.Alarms(ctx, rs, time.Now())
	if alarms == nil {
		alarms = []engine.Alarm{}
	}
	c.JSON(consts.StatusOK, utils.H{"alarms": alarms})
}

func (gw *Gateway) tickNow(ctx context.Context, c *app.RequestContext) {
	rep := gw.rt.Engine.RunTick(logs.WithNewLogID(ctx), time.Now().Truncate(time.Minute))
	if rep.Err != nil {
		gw.writeError(ctx, c, rep.Err)
		return
	}
	c.JSON(consts.StatusOK, rep)
}

func (gw *Gateway) writeError(ctx context.Context, c *app.RequestContext, err error) {
	switch {
	case errors.Is(err, reminder.ErrNotFound):
		c.JSON(consts.StatusNotFound, utils.H{"error": "not found"})
	case errors.Is(err, reminder.ErrInvalid):
		c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
	default:
		logs.CtxError(ctx, "[gateway] %s %s: %v", c.Method(), c.Path(), err)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "internal error"})
	}
}
