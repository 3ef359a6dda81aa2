package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"chama-backend/internal/domain/member"

	"github.com/labstack/echo/v4"
)

const (
	HeaderMemberID   = "X-Member-Id"
	HeaderMemberName = "X-Member-Name"
	HeaderMemberRole = "X-Member-Role"

	actorKey = "chama.actor"
)

// Actor reads the caller identity set by the upstream auth proxy. Requests
// without X-Member-Id pass through with a zero actor; usecases decide what
// an anonymous caller may do.
func Actor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			raw := strings.TrimSpace(h.Get(HeaderMemberID))
			if raw == "" {
				c.Set(actorKey, member.Actor{})
				return next(c)
			}
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid " + HeaderMemberID})
			}
			role := member.Role(strings.ToUpper(strings.TrimSpace(h.Get(HeaderMemberRole))))
			switch role {
			case "":
				role = member.RoleMember
			case member.RoleMember, member.RoleChairperson, member.RoleTreasurer, member.RoleSecretary:
			default:
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid " + HeaderMemberRole})
			}
			c.Set(actorKey, member.Actor{
				MemberID: id,
				Name:     strings.TrimSpace(h.Get(HeaderMemberName)),
				Role:     role,
			})
			return next(c)
		}
	}
}

// ActorFrom returns the actor stored by Actor, or the zero actor.
func ActorFrom(c echo.Context) member.Actor {
	a, _ := c.Get(actorKey).(member.Actor)
	return a
}
