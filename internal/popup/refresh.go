package popup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/logger"
)

// refresh makes a single refreshsession attempt after the initial load saw an
// expired session. Only a reply carrying both session and user moves the popup
// out of Loading; every other outcome is logged and the state is kept.
// TODO: decide with product whether a refreshed session without a user should
// fall back to Unauthenticated instead of staying in Loading.
func (c *Controller) refresh(ctx context.Context) error {
	const op = "popup.Controller.refresh"
	log := c.log.With(logger.StringAttr("op", op))

	done, err := c.request(models.RefreshSessionRequest())
	if err != nil {
		log.Error("failed to send refreshsession", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := await(ctx, done)
	if err != nil {
		log.Warn("refreshsession did not complete", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case resp.Error != nil:
		log.Warn("error refreshing session", logger.StringAttr("error", resp.Error.Message))
	case resp.Data == nil || resp.Data.Session == nil:
		log.Warn("refreshed session data is not available")
	case resp.Data.User == nil:
		log.Info("session refreshed, user data not returned")
	default:
		log.Info("session refreshed",
			logger.StringAttr("user_id", resp.Data.User.ID),
			slog.Int64("expires_at", resp.Data.Session.ExpiresAt),
		)
		c.transition(authenticated(resp.Data.User, resp.Data.Session.ExpiresAt))
	}

	return nil
}
