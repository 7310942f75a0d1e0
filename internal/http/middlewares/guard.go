package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/observability"
)

// Guard evaluates g on every request. Denied viewers get a bare 302 so none of the
// protected content is written.
func Guard(src account.ProfileSource, g account.Guard, prom *observability.Prom) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.Check(c.Request.Context(), src)

		if d.State != account.GuardGranted {
			prom.IncAuthzDenial("guard")
			if d.Err != nil {
				_ = c.Error(d.Err)
			}

			c.Header("Location", d.Redirect)
			c.AbortWithStatus(http.StatusFound)
			return
		}

		c.Set(ctxProfile, d.Profile)
		c.Next()
	}
}

// ProfileFromContext returns the profile a Guard granted access with.
func ProfileFromContext(c *gin.Context) (profile.Profile, bool) {
	v, ok := c.Get(ctxProfile)
	if !ok {
		return profile.Profile{}, false
	}
	p, ok := v.(profile.Profile)
	return p, ok
}
