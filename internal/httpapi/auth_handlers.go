package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"kbagent/internal/auth"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type loginResponse struct {
	Token    tokenPayload `json:"token"`
	Role     string       `json:"role"`
	Username string       `json:"username"`
}

// handleLogin implements POST /auth/login.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.store.GetUserByUsername(c.Request.Context(), req.Username)
	if err == sql.ErrNoRows {
		respondWithClientError(c, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		s.handleErr(c, err, "could not process login")
		return
	}
	if !user.Active || !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondWithClientError(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		s.handleErr(c, err, "could not issue access token")
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:    tokenPayload{AccessToken: token, TokenType: "bearer"},
		Role:     user.Role,
		Username: user.Username,
	})
}

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

// handleUsersMe implements GET /users/me.
func (s *Server) handleUsersMe(c *gin.Context) {
	user, err := s.store.GetUserByID(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		s.handleErr(c, err, "could not load user")
		return
	}
	c.JSON(http.StatusOK, userView{ID: user.ID, Username: user.Username, Role: user.Role, Active: user.Active})
}

// handleAdminListUsers implements GET /admin/users.
func (s *Server) handleAdminListUsers(c *gin.Context) {
	users, err := s.store.ListUsers(c.Request.Context())
	if err != nil {
		s.handleErr(c, err, "could not list users")
		return
	}
	out := make([]userView, len(users))
	for i, u := range users {
		out[i] = userView{ID: u.ID, Username: u.Username, Role: u.Role, Active: u.Active}
	}
	c.JSON(http.StatusOK, out)
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// handleAdminCreateUser implements POST /admin/users.
func (s *Server) handleAdminCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "username and password are required")
		return
	}
	if req.Role == "" {
		req.Role = "user"
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.handleErr(c, err, "could not hash password")
		return
	}
	user, err := s.store.CreateUser(c.Request.Context(), req.Username, hash, req.Role)
	if err != nil {
		s.handleErr(c, err, "could not create user")
		return
	}
	c.JSON(http.StatusCreated, userView{ID: user.ID, Username: user.Username, Role: user.Role, Active: user.Active})
}

type updateUserRequest struct {
	Role   string `json:"role" binding:"required"`
	Active bool   `json:"active"`
}

// handleAdminUpdateUser implements PUT /admin/users/{id}.
func (s *Server) handleAdminUpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "role is required")
		return
	}
	if err := s.store.UpdateUser(c.Request.Context(), c.Param("id"), req.Role, req.Active); err != nil {
		s.handleErr(c, err, "could not update user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
