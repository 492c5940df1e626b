package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	userdomain "github.com/dentora/dentora/internal/user/domain"
)

type CreateUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Specialty   string `json:"specialty"`
}

type UpdateUserRequest struct {
	DisplayName *string `json:"display_name"`
	Role        *string `json:"role"`
	Specialty   *string `json:"specialty"`
	Status      *string `json:"status"`
}

func (s *Server) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.userSvc.CreateUser(c.Request.Context(), userdomain.CreateUserRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        userdomain.Role(req.Role),
		Specialty:   req.Specialty,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) GetUserByID(c *gin.Context) {
	user, err := s.userSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) ListUsers(c *gin.Context) {
	users, err := s.userSvc.List(c.Request.Context(), userdomain.ListUserRequest{
		Role:   c.Query("role"),
		Status: c.Query("status"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var role *userdomain.Role
	if req.Role != nil {
		typed := userdomain.Role(*req.Role)
		role = &typed
	}

	user, err := s.userSvc.Update(c.Request.Context(), userdomain.UpdateUserRequest{
		ID:          c.Param("id"),
		DisplayName: req.DisplayName,
		Role:        role,
		Specialty:   req.Specialty,
		Status:      req.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListPractitioners returns the staff that appointments can be booked
// against: dentists and assistants.
func (s *Server) ListPractitioners(c *gin.Context) {
	role := c.Query("role")
	roles := []string{string(userdomain.RoleDentist), string(userdomain.RoleAssistant)}
	if role != "" {
		roles = []string{role}
	}

	practitioners := make([]userdomain.User, 0)
	for _, r := range roles {
		users, err := s.userSvc.List(c.Request.Context(), userdomain.ListUserRequest{
			Role:   r,
			Status: "active",
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		practitioners = append(practitioners, users...)
	}
	c.JSON(http.StatusOK, gin.H{"practitioners": practitioners})
}
