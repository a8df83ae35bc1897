package handlers

import (
	"errors"
	"net/http"

	"go-pos-backend/internal/middleware"
	"go-pos-backend/internal/staff"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	user, err := h.Staff.Authenticate(c.Request.Context(), input.Username, input.Password)
	if errors.Is(err, staff.ErrBadCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	token, err := h.Issuer.Generate(user.ID, user.Username, user.Role())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"role":     user.Role(),
		"username": user.Username,
	})
}

func (h *Handler) Register(c *gin.Context) {
	var input staff.Registration
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	user, err := h.Staff.Register(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully!", "id": user.ID, "role": user.Role()})
}

// Me returns the caller's account with the role the token carries.
func (h *Handler) Me(c *gin.Context) {
	id, _ := middleware.UserID(c)
	user, err := h.Staff.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "role": middleware.Role(c)})
}
