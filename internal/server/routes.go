package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) AddRoutes(e *echo.Echo) {

	LoginRequired := LoginRequiredMiddlewareWithConfig(s.auth)
	SuperuserRequired := SuperuserAccessMiddleware(s.auth)

	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	e.POST("/api/auth/login", s.handleLogin())
	e.POST("/api/auth/social", s.handleSocialLogin())
	e.POST("/api/auth/refresh", s.handleRefreshToken, LoginRequired)
	e.POST("/api/auth/verify", s.handleVerifyToken)
	e.POST("/api/auth/logout", s.handleLogout)
	e.GET("/api/auth/user", s.handleGetSessionUser)
	e.GET("/api/auth/is_authenticated", s.handleGetSessionUser, LoginRequired)
	e.GET("/api/auth/is_superuser", s.handleGetSessionUser, SuperuserRequired)

	if s.Config.SignupAPI {
		e.POST("/api/accounts/signup", s.handleSignUp())
		e.POST("/api/accounts/activate", s.handleActivateAccount())
	}
	e.GET("/api/accounts/check", s.handleCheckAvailability())
	e.POST("/api/accounts/password_reset", s.handlePasswordReset())
	e.POST("/api/accounts/new_password", s.handleNewPassword())
	e.POST("/api/accounts/change_password", s.handleChangePassword(), LoginRequired)
	e.GET("/api/account", s.handleGetAccountInfo(), LoginRequired)
	e.PUT("/api/account", s.handleUpdateAccount(), LoginRequired)
	e.POST("/api/account/avatar", s.handleUploadAvatar, LoginRequired)
	e.GET("/api/users/:user/avatar", s.handleGetAvatar, LoginRequired)

	e.GET("/api/admin/users", s.handleGetAllUsers, SuperuserRequired)
	e.GET("/api/admin/users/:user", s.handleGetUser, SuperuserRequired)
	e.PUT("/api/admin/users/:user", s.handleUpdateUser(), SuperuserRequired)
	e.DELETE("/api/admin/users/:user", s.handleDeleteUser, SuperuserRequired)
	e.POST("/api/admin/user", s.handleCreateUser(), SuperuserRequired)
	e.POST("/api/admin/email_preview", s.handleGetEmailPreview(), SuperuserRequired)
	e.POST("/api/admin/email", s.handleSendEmail(), SuperuserRequired)
	e.POST("/api/admin/send_activation_email", s.handleSendActivationEmail(), SuperuserRequired)

	e.GET("/api/teams", s.handleGetTeams, LoginRequired)
	e.POST("/api/teams", s.handleCreateTeam(), LoginRequired)
	e.POST("/api/teams/join", s.handleAcceptInvitation(), LoginRequired)
	e.GET("/api/teams/:team", s.handleGetTeam, LoginRequired)
	e.PUT("/api/teams/:team", s.handleUpdateTeam(), LoginRequired)
	e.PUT("/api/teams/:team/members/:user", s.handleUpdateTeamRole(), LoginRequired)
	e.DELETE("/api/teams/:team/members/:user", s.handleRemoveTeamMember, LoginRequired)
	e.GET("/api/teams/:team/invitations", s.handleGetInvitations, LoginRequired)
	e.POST("/api/teams/:team/invitations", s.handleInviteToTeam(), LoginRequired)

	e.GET("/api/teams/:team/projects", s.handleGetProjects, LoginRequired)
	e.POST("/api/teams/:team/projects", s.handleCreateProject(), LoginRequired)
	e.GET("/api/teams/:team/projects/:project", s.handleGetProject, LoginRequired)
	e.PUT("/api/teams/:team/projects/:project", s.handleUpdateProject(), LoginRequired)
	e.DELETE("/api/teams/:team/projects/:project", s.handleDeleteProject, LoginRequired)
	e.POST("/api/teams/:team/projects/:project/members", s.handleAddProjectMember(), LoginRequired)
	e.PUT("/api/teams/:team/projects/:project/members/:user", s.handleUpdateProjectRole(), LoginRequired)
	e.DELETE("/api/teams/:team/projects/:project/members/:user", s.handleRemoveProjectMember, LoginRequired)
	e.POST("/api/teams/:team/projects/:project/subscription", s.handleSubscribeProject, LoginRequired)
	e.DELETE("/api/teams/:team/projects/:project/subscription", s.handleUnsubscribeProject, LoginRequired)

	e.GET("/api/tickets/assigned", s.handleGetAssignedTickets, LoginRequired)
	e.GET("/api/teams/:team/projects/:project/tickets", s.handleGetTickets, LoginRequired)
	e.POST("/api/teams/:team/projects/:project/tickets", s.handleCreateTicket(), LoginRequired)
	e.GET("/api/teams/:team/projects/:project/tickets/:ticket", s.handleGetTicket, LoginRequired)
	e.PUT("/api/teams/:team/projects/:project/tickets/:ticket", s.handleUpdateTicket(), LoginRequired)
	e.DELETE("/api/teams/:team/projects/:project/tickets/:ticket", s.handleDeleteTicket, LoginRequired)
	e.PUT("/api/teams/:team/projects/:project/tickets/:ticket/assign", s.handleAssignTicket(), LoginRequired)
	e.POST("/api/teams/:team/projects/:project/tickets/:ticket/close", s.handleCloseTicket(), LoginRequired)
	e.POST("/api/teams/:team/projects/:project/tickets/:ticket/reopen", s.handleReopenTicket, LoginRequired)
	e.POST("/api/teams/:team/projects/:project/tickets/:ticket/subscription", s.handleSubscribeTicket, LoginRequired)
	e.DELETE("/api/teams/:team/projects/:project/tickets/:ticket/subscription", s.handleUnsubscribeTicket, LoginRequired)

	e.GET("/api/teams/:team/projects/:project/tickets/:ticket/comments", s.handleGetComments, LoginRequired)
	e.POST("/api/teams/:team/projects/:project/tickets/:ticket/comments", s.handleCreateComment(), LoginRequired)
	e.PUT("/api/teams/:team/projects/:project/tickets/:ticket/comments/:comment", s.handleUpdateComment(), LoginRequired)
	e.DELETE("/api/teams/:team/projects/:project/tickets/:ticket/comments/:comment", s.handleDeleteComment, LoginRequired)

	e.GET("/api/teams/:team/projects/:project/tickets/:ticket/attachments", s.handleGetAttachments, LoginRequired)
	e.POST("/api/teams/:team/projects/:project/tickets/:ticket/attachments", s.handleUploadAttachment, LoginRequired)
	e.GET("/api/teams/:team/projects/:project/tickets/:ticket/attachments/:attachment", s.handleDownloadAttachment, LoginRequired)
	e.DELETE("/api/teams/:team/projects/:project/tickets/:ticket/attachments/:attachment", s.handleDeleteAttachment, LoginRequired)

	e.GET("/ws/teams/:team", s.handleTeamActivityWS, LoginRequired)
}
