package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"storefront-backend/cart"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
)

const internalErrorMessage = "Something went wrong"

// statusForError maps cart error kinds to an HTTP status. The bool reports
// whether the error message is safe to show to the caller.
func statusForError(err error) (int, bool) {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, cart.ErrValidation),
		errors.Is(err, cart.ErrStock),
		errors.Is(err, cart.ErrUnavailable),
		errors.Is(err, cart.ErrIdentity):
		return http.StatusBadRequest, true
	case errors.Is(err, cart.ErrConflict):
		return http.StatusInternalServerError, true
	default:
		return http.StatusInternalServerError, false
	}
}

func respondError(c *gin.Context, log *slog.Logger, err error) {
	status, public := statusForError(err)
	if !public {
		log.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		utils.RespondError(c, status, internalErrorMessage)
		return
	}
	if status >= http.StatusInternalServerError {
		log.WarnContext(c.Request.Context(), "request conflicted", "path", c.FullPath(), "error", err)
	}
	utils.RespondError(c, status, err.Error())
}

func bindError(c *gin.Context, err error) {
	utils.RespondError(c, http.StatusBadRequest, utils.SanitizeValidationError(err))
}
