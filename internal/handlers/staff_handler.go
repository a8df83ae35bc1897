package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListStaff(c *gin.Context) {
	list, err := h.Staff.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetStaff(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	s, err := h.Staff.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// DeleteStaff is admin only. An admin cannot delete their own account.
func (h *Handler) DeleteStaff(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if me := callerID(c); me != nil && *me == id {
		badRequest(c, "You cannot delete your own account")
		return
	}
	if err := h.Staff.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
