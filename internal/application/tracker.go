package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

var (
	ErrPermissionDenied = errors.New("Permission denied")
)

// TrackerEmailService delivers tracker related emails. May be left nil
// when SMTP is not configured.
type TrackerEmailService interface {
	SendTicketNotification(event domain.TicketEvent, recipients []string) error
	SendTeamInvitationEmail(to string, team domain.Team, invitedBy, invitationID, token string) error
}

// ActivityBroadcaster pushes ticket events to live subscribers.
type ActivityBroadcaster interface {
	Broadcast(team string, event domain.TicketEvent)
}

type TrackerService struct {
	log      *zap.SugaredLogger
	teams    domain.TeamsRepository
	projects domain.ProjectsRepository
	tickets  domain.TicketsRepository
	accounts domain.AccountsRepository
	email    TrackerEmailService
	activity ActivityBroadcaster
	tokenGen TokenGenerator
}

func NewTrackerService(
	log *zap.SugaredLogger,
	teams domain.TeamsRepository,
	projects domain.ProjectsRepository,
	tickets domain.TicketsRepository,
	accounts domain.AccountsRepository,
	email TrackerEmailService,
	activity ActivityBroadcaster,
	tokenGen TokenGenerator,
) *TrackerService {
	return &TrackerService{
		log:      log,
		teams:    teams,
		projects: projects,
		tickets:  tickets,
		accounts: accounts,
		email:    email,
		activity: activity,
		tokenGen: tokenGen,
	}
}

// TEAMS

func (s *TrackerService) CreateTeam(actor, title, description string) (domain.Team, error) {
	team, err := domain.NewTeam(title, description)
	if err != nil {
		return domain.Team{}, err
	}
	return s.teams.Create(team, actor)
}

func (s *TrackerService) ListTeams(actor string) ([]domain.Team, error) {
	return s.teams.ListForUser(actor)
}

// teamForMember loads the team and checks actor's membership.
func (s *TrackerService) teamForMember(actor, slug string) (domain.Team, domain.TeamMembership, error) {
	team, err := s.teams.GetBySlug(slug)
	if err != nil {
		return domain.Team{}, domain.TeamMembership{}, err
	}
	membership, err := s.teams.GetMembership(team.ID, actor)
	if err != nil {
		if errors.Is(err, domain.ErrNotTeamMember) {
			return domain.Team{}, domain.TeamMembership{}, ErrPermissionDenied
		}
		return domain.Team{}, domain.TeamMembership{}, err
	}
	return team, membership, nil
}

func (s *TrackerService) GetTeam(actor, slug string) (domain.Team, []domain.TeamMembership, error) {
	team, _, err := s.teamForMember(actor, slug)
	if err != nil {
		return domain.Team{}, nil, err
	}
	memberships, err := s.teams.GetMemberships(team.ID)
	if err != nil {
		return domain.Team{}, nil, err
	}
	return team, memberships, nil
}

// UpdateTeam changes the team description. The title (and with it the
// slug) is immutable after creation.
func (s *TrackerService) UpdateTeam(actor, slug, description string) (domain.Team, error) {
	team, membership, err := s.teamForMember(actor, slug)
	if err != nil {
		return domain.Team{}, err
	}
	if !membership.IsAdmin() {
		return domain.Team{}, ErrPermissionDenied
	}
	team.Description = strings.TrimSpace(description)
	if err := s.teams.Update(team); err != nil {
		return domain.Team{}, err
	}
	return team, nil
}

func (s *TrackerService) UpdateTeamRole(actor, slug, username string, role domain.TeamRole) error {
	team, membership, err := s.teamForMember(actor, slug)
	if err != nil {
		return err
	}
	if !membership.IsAdmin() {
		return ErrPermissionDenied
	}
	if !role.Valid() {
		return fmt.Errorf("invalid team role: %d", role)
	}
	return s.teams.UpdateMemberRole(team.ID, username, role)
}

func (s *TrackerService) RemoveTeamMember(actor, slug, username string) error {
	team, membership, err := s.teamForMember(actor, slug)
	if err != nil {
		return err
	}
	// members may leave on their own, otherwise admin access is required
	if actor != username && !membership.IsAdmin() {
		return ErrPermissionDenied
	}
	return s.teams.RemoveMember(team.ID, username)
}

// INVITATIONS

func invitationClaims(invitation domain.TeamInvitation) string {
	return fmt.Sprintf("%s:%d:%s", invitation.ID, invitation.TeamID, invitation.Email)
}

func (s *TrackerService) InviteToTeam(actor, slug, email string) (domain.TeamInvitation, error) {
	team, membership, err := s.teamForMember(actor, slug)
	if err != nil {
		return domain.TeamInvitation{}, err
	}
	if !membership.IsAdmin() {
		return domain.TeamInvitation{}, ErrPermissionDenied
	}
	if s.email == nil {
		return domain.TeamInvitation{}, fmt.Errorf("emails are not configured")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return domain.TeamInvitation{}, err
	}
	invitation := domain.TeamInvitation{
		ID:        id.String(),
		TeamID:    team.ID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		InvitedBy: actor,
	}
	if err := s.teams.CreateInvitation(invitation); err != nil {
		return domain.TeamInvitation{}, err
	}
	token, err := s.tokenGen.GenerateToken(invitationClaims(invitation))
	if err != nil {
		return domain.TeamInvitation{}, err
	}
	if err := s.email.SendTeamInvitationEmail(invitation.Email, team, actor, invitation.ID, token); err != nil {
		return domain.TeamInvitation{}, fmt.Errorf("sending invitation email [%s]: %w", invitation.Email, err)
	}
	return invitation, nil
}

func (s *TrackerService) ListInvitations(actor, slug string) ([]domain.TeamInvitation, error) {
	team, membership, err := s.teamForMember(actor, slug)
	if err != nil {
		return nil, err
	}
	if !membership.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	return s.teams.ListInvitations(team.ID)
}

// AcceptInvitation joins the actor to the invited team as a member.
func (s *TrackerService) AcceptInvitation(actor, invitationID, token string) (domain.Team, error) {
	invitation, err := s.teams.GetInvitation(invitationID)
	if err != nil {
		return domain.Team{}, err
	}
	if invitation.Accepted {
		return domain.Team{}, domain.ErrInvitationUsed
	}
	if err := s.tokenGen.CheckToken(token, invitationClaims(invitation)); err != nil {
		return domain.Team{}, ErrInvalidToken
	}
	if err := s.teams.AddMember(invitation.TeamID, actor, domain.TeamRoleMember); err != nil {
		if !errors.Is(err, domain.ErrAlreadyTeamMember) {
			return domain.Team{}, err
		}
	}
	if err := s.teams.MarkInvitationAccepted(invitation.ID); err != nil {
		return domain.Team{}, err
	}
	teams, err := s.teams.ListForUser(actor)
	if err != nil {
		return domain.Team{}, err
	}
	for _, t := range teams {
		if t.ID == invitation.TeamID {
			return t, nil
		}
	}
	return domain.Team{}, domain.ErrTeamNotFound
}

// PROJECTS

func (s *TrackerService) CreateProject(actor, teamSlug, title, description string) (domain.Project, error) {
	team, membership, err := s.teamForMember(actor, teamSlug)
	if err != nil {
		return domain.Project{}, err
	}
	if !membership.IsAdmin() {
		return domain.Project{}, ErrPermissionDenied
	}
	project, err := domain.NewProject(team.ID, title, description)
	if err != nil {
		return domain.Project{}, err
	}
	return s.projects.Create(project, actor)
}

func (s *TrackerService) ListProjects(actor, teamSlug string) ([]domain.Project, error) {
	team, _, err := s.teamForMember(actor, teamSlug)
	if err != nil {
		return nil, err
	}
	return s.projects.ListForTeam(team.ID)
}

type projectContext struct {
	team           domain.Team
	teamMembership domain.TeamMembership
	project        domain.Project
	membership     *domain.ProjectMembership
}

func (c projectContext) isManager() bool {
	return c.membership != nil && c.membership.IsManager()
}

func (c projectContext) isProjectMember() bool {
	return c.membership != nil
}

// projectFor loads the project and the actor's team and project
// memberships. Team membership is required; project membership is
// optional and reported through the context.
func (s *TrackerService) projectFor(actor, teamSlug, projectSlug string) (projectContext, error) {
	team, teamMembership, err := s.teamForMember(actor, teamSlug)
	if err != nil {
		return projectContext{}, err
	}
	project, err := s.projects.GetBySlug(team.ID, projectSlug)
	if err != nil {
		return projectContext{}, err
	}
	ctx := projectContext{team: team, teamMembership: teamMembership, project: project}
	membership, err := s.projects.GetMembership(project.ID, actor)
	if err == nil {
		ctx.membership = &membership
	} else if !errors.Is(err, domain.ErrNotProjectMember) {
		return projectContext{}, err
	}
	return ctx, nil
}

func (s *TrackerService) GetProject(actor, teamSlug, projectSlug string) (domain.Project, []domain.ProjectMembership, error) {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return domain.Project{}, nil, err
	}
	memberships, err := s.projects.GetMemberships(ctx.project.ID)
	if err != nil {
		return domain.Project{}, nil, err
	}
	return ctx.project, memberships, nil
}

func (s *TrackerService) UpdateProject(actor, teamSlug, projectSlug, description string, archived bool) (domain.Project, error) {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return domain.Project{}, err
	}
	if !ctx.isManager() && !ctx.teamMembership.IsAdmin() {
		return domain.Project{}, ErrPermissionDenied
	}
	ctx.project.Description = strings.TrimSpace(description)
	ctx.project.IsArchived = archived
	if err := s.projects.Update(ctx.project); err != nil {
		return domain.Project{}, err
	}
	return ctx.project, nil
}

func (s *TrackerService) DeleteProject(actor, teamSlug, projectSlug string) error {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return err
	}
	if !ctx.teamMembership.IsAdmin() {
		return ErrPermissionDenied
	}
	return s.projects.Delete(ctx.project.ID)
}

func (s *TrackerService) AddProjectMember(actor, teamSlug, projectSlug, username string, role domain.ProjectRole) error {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return err
	}
	if !ctx.isManager() && !ctx.teamMembership.IsAdmin() {
		return ErrPermissionDenied
	}
	if !role.Valid() {
		return fmt.Errorf("invalid project role: %d", role)
	}
	// project members must belong to the team
	if _, err := s.teams.GetMembership(ctx.team.ID, username); err != nil {
		return err
	}
	return s.projects.AddMember(ctx.project.ID, username, role)
}

func (s *TrackerService) UpdateProjectRole(actor, teamSlug, projectSlug, username string, role domain.ProjectRole) error {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return err
	}
	if !ctx.isManager() && !ctx.teamMembership.IsAdmin() {
		return ErrPermissionDenied
	}
	if !role.Valid() {
		return fmt.Errorf("invalid project role: %d", role)
	}
	return s.projects.UpdateMemberRole(ctx.project.ID, username, role)
}

func (s *TrackerService) RemoveProjectMember(actor, teamSlug, projectSlug, username string) error {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return err
	}
	if actor != username && !ctx.isManager() && !ctx.teamMembership.IsAdmin() {
		return ErrPermissionDenied
	}
	return s.projects.RemoveMember(ctx.project.ID, username)
}

func (s *TrackerService) SubscribeProject(actor, teamSlug, projectSlug string) error {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return err
	}
	return s.projects.Subscribe(ctx.project.ID, actor)
}

func (s *TrackerService) UnsubscribeProject(actor, teamSlug, projectSlug string) error {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return err
	}
	return s.projects.Unsubscribe(ctx.project.ID, actor)
}

// TICKETS

func (s *TrackerService) CreateTicket(actor, teamSlug, projectSlug, title, description string, priority domain.TicketPriority) (domain.Ticket, error) {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return domain.Ticket{}, err
	}
	if !ctx.isProjectMember() {
		return domain.Ticket{}, ErrPermissionDenied
	}
	if ctx.project.IsArchived {
		return domain.Ticket{}, domain.ErrProjectArchived
	}
	ticket, err := domain.NewTicket(ctx.project.ID, title, description, priority, actor)
	if err != nil {
		return domain.Ticket{}, err
	}
	ticket, err = s.tickets.Create(ticket)
	if err != nil {
		return domain.Ticket{}, err
	}
	// the submitter follows their own ticket
	if err := s.tickets.Subscribe(ticket.ID, actor); err != nil {
		s.log.Warnw("subscribing submitter", "ticket", ticket.Slug, zap.Error(err))
	}
	s.notify(ctx, ticket, domain.TicketEvent{
		Action:  "created",
		Team:    ctx.team.Slug,
		Project: ctx.project.Slug,
		Ticket:  ticket.Slug,
		Title:   ticket.Title,
		Actor:   actor,
	})
	return ticket, nil
}

func (s *TrackerService) ListTickets(actor, teamSlug, projectSlug string) ([]domain.Ticket, error) {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return nil, err
	}
	if !ctx.isProjectMember() {
		return nil, ErrPermissionDenied
	}
	return s.tickets.ListForProject(ctx.project.ID)
}

// ListAssignedTickets returns open tickets assigned to the actor across
// all projects.
func (s *TrackerService) ListAssignedTickets(actor string) ([]domain.Ticket, error) {
	return s.tickets.ListAssigned(actor)
}

// ticketFor loads the ticket named by the request path. Tickets and
// everything below them (comments, attachments, subscriptions) are
// readable by project members only.
func (s *TrackerService) ticketFor(actor, teamSlug, projectSlug, ticketSlug string) (projectContext, domain.Ticket, error) {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return projectContext{}, domain.Ticket{}, err
	}
	if !ctx.isProjectMember() {
		return projectContext{}, domain.Ticket{}, ErrPermissionDenied
	}
	ticket, err := s.tickets.GetBySlug(ctx.project.ID, ticketSlug)
	if err != nil {
		return projectContext{}, domain.Ticket{}, err
	}
	return ctx, ticket, nil
}

func (s *TrackerService) GetTicket(actor, teamSlug, projectSlug, ticketSlug string) (domain.Ticket, error) {
	_, ticket, err := s.ticketFor(actor, teamSlug, projectSlug, ticketSlug)
	if err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

func (s *TrackerService) UpdateTicket(actor, teamSlug, projectSlug, ticketSlug, description string, priority domain.TicketPriority) (domain.Ticket, error) {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return domain.Ticket{}, err
	}
	ticket, err := s.tickets.GetBySlug(ctx.project.ID, ticketSlug)
	if err != nil {
		return domain.Ticket{}, err
	}
	canEdit := ctx.isManager() || actor == ticket.Submitter || actor == ticket.Developer
	if !canEdit {
		return domain.Ticket{}, ErrPermissionDenied
	}
	if !priority.Valid() {
		return domain.Ticket{}, fmt.Errorf("invalid ticket priority: %d", priority)
	}
	ticket.Description = strings.TrimSpace(description)
	ticket.Priority = priority
	if err := s.tickets.Update(ticket); err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

func (s *TrackerService) AssignTicket(actor, teamSlug, projectSlug, ticketSlug, developer string) (domain.Ticket, error) {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return domain.Ticket{}, err
	}
	if !ctx.isManager() && !ctx.teamMembership.IsAdmin() {
		return domain.Ticket{}, ErrPermissionDenied
	}
	ticket, err := s.tickets.GetBySlug(ctx.project.ID, ticketSlug)
	if err != nil {
		return domain.Ticket{}, err
	}
	if developer != "" {
		if _, err := s.projects.GetMembership(ctx.project.ID, developer); err != nil {
			return domain.Ticket{}, err
		}
	}
	ticket.Developer = developer
	if err := s.tickets.Update(ticket); err != nil {
		return domain.Ticket{}, err
	}
	if developer != "" {
		if err := s.tickets.Subscribe(ticket.ID, developer); err != nil {
			s.log.Warnw("subscribing developer", "ticket", ticket.Slug, zap.Error(err))
		}
		s.notify(ctx, ticket, domain.TicketEvent{
			Action:  "assigned",
			Team:    ctx.team.Slug,
			Project: ctx.project.Slug,
			Ticket:  ticket.Slug,
			Title:   ticket.Title,
			Actor:   actor,
			Detail:  developer,
		})
	}
	return ticket, nil
}

func (s *TrackerService) CloseTicket(actor, teamSlug, projectSlug, ticketSlug, resolution string) (domain.Ticket, error) {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return domain.Ticket{}, err
	}
	ticket, err := s.tickets.GetBySlug(ctx.project.ID, ticketSlug)
	if err != nil {
		return domain.Ticket{}, err
	}
	if !ctx.isManager() && actor != ticket.Developer {
		return domain.Ticket{}, ErrPermissionDenied
	}
	if err := ticket.Close(resolution); err != nil {
		return domain.Ticket{}, err
	}
	if err := s.tickets.Update(ticket); err != nil {
		return domain.Ticket{}, err
	}
	s.notify(ctx, ticket, domain.TicketEvent{
		Action:  "closed",
		Team:    ctx.team.Slug,
		Project: ctx.project.Slug,
		Ticket:  ticket.Slug,
		Title:   ticket.Title,
		Actor:   actor,
		Detail:  ticket.Resolution,
	})
	return ticket, nil
}

func (s *TrackerService) ReopenTicket(actor, teamSlug, projectSlug, ticketSlug string) (domain.Ticket, error) {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return domain.Ticket{}, err
	}
	ticket, err := s.tickets.GetBySlug(ctx.project.ID, ticketSlug)
	if err != nil {
		return domain.Ticket{}, err
	}
	if !ctx.isManager() && actor != ticket.Submitter {
		return domain.Ticket{}, ErrPermissionDenied
	}
	ticket.Reopen()
	if err := s.tickets.Update(ticket); err != nil {
		return domain.Ticket{}, err
	}
	s.notify(ctx, ticket, domain.TicketEvent{
		Action:  "reopened",
		Team:    ctx.team.Slug,
		Project: ctx.project.Slug,
		Ticket:  ticket.Slug,
		Title:   ticket.Title,
		Actor:   actor,
	})
	return ticket, nil
}

func (s *TrackerService) DeleteTicket(actor, teamSlug, projectSlug, ticketSlug string) error {
	ctx, err := s.projectFor(actor, teamSlug, projectSlug)
	if err != nil {
		return err
	}
	if !ctx.isManager() && !ctx.teamMembership.IsAdmin() {
		return ErrPermissionDenied
	}
	ticket, err := s.tickets.GetBySlug(ctx.project.ID, ticketSlug)
	if err != nil {
		return err
	}
	return s.tickets.Delete(ticket.ID)
}

func (s *TrackerService) SubscribeTicket(actor, teamSlug, projectSlug, ticketSlug string) error {
	_, ticket, err := s.ticketFor(actor, teamSlug, projectSlug, ticketSlug)
	if err != nil {
		return err
	}
	return s.tickets.Subscribe(ticket.ID, actor)
}

func (s *TrackerService) UnsubscribeTicket(actor, teamSlug, projectSlug, ticketSlug string) error {
	_, ticket, err := s.ticketFor(actor, teamSlug, projectSlug, ticketSlug)
	if err != nil {
		return err
	}
	return s.tickets.Unsubscribe(ticket.ID, actor)
}

// COMMENTS

func (s *TrackerService) AddComment(actor, teamSlug, projectSlug, ticketSlug, text string) (domain.Comment, error) {
	ctx, ticket, err := s.ticketFor(actor, teamSlug, projectSlug, ticketSlug)
	if err != nil {
		return domain.Comment{}, err
	}
	comment, err := domain.NewComment(ticket.ID, actor, text)
	if err != nil {
		return domain.Comment{}, err
	}
	comment, err = s.tickets.CreateComment(comment)
	if err != nil {
		return domain.Comment{}, err
	}
	s.notify(ctx, ticket, domain.TicketEvent{
		Action:  "commented",
		Team:    ctx.team.Slug,
		Project: ctx.project.Slug,
		Ticket:  ticket.Slug,
		Title:   ticket.Title,
		Actor:   actor,
	})
	return comment, nil
}

func (s *TrackerService) ListComments(actor, teamSlug, projectSlug, ticketSlug string) ([]domain.Comment, error) {
	_, ticket, err := s.ticketFor(actor, teamSlug, projectSlug, ticketSlug)
	if err != nil {
		return nil, err
	}
	return s.tickets.ListComments(ticket.ID)
}

// commentFor loads a comment and verifies it belongs to the ticket
// named by the request path. Comment IDs are global, so without this
// check a manager of one project could reach comments of another.
func (s *TrackerService) commentFor(actor, teamSlug, projectSlug, ticketSlug string, commentID int64) (projectContext, domain.Comment, error) {
	ctx, ticket, err := s.ticketFor(actor, teamSlug, projectSlug, ticketSlug)
	if err != nil {
		return projectContext{}, domain.Comment{}, err
	}
	comment, err := s.tickets.GetComment(commentID)
	if err != nil {
		return projectContext{}, domain.Comment{}, err
	}
	if comment.TicketID != ticket.ID {
		return projectContext{}, domain.Comment{}, domain.ErrCommentNotFound
	}
	return ctx, comment, nil
}

func (s *TrackerService) UpdateComment(actor, teamSlug, projectSlug, ticketSlug string, commentID int64, text string) (domain.Comment, error) {
	_, comment, err := s.commentFor(actor, teamSlug, projectSlug, ticketSlug, commentID)
	if err != nil {
		return domain.Comment{}, err
	}
	if comment.Author != actor {
		return domain.Comment{}, ErrPermissionDenied
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Comment{}, fmt.Errorf("comment text is required")
	}
	comment.Text = text
	if err := s.tickets.UpdateComment(comment); err != nil {
		return domain.Comment{}, err
	}
	return comment, nil
}

func (s *TrackerService) DeleteComment(actor, teamSlug, projectSlug, ticketSlug string, commentID int64) error {
	ctx, comment, err := s.commentFor(actor, teamSlug, projectSlug, ticketSlug, commentID)
	if err != nil {
		return err
	}
	if comment.Author != actor && !ctx.isManager() {
		return ErrPermissionDenied
	}
	return s.tickets.DeleteComment(comment.ID)
}

// ATTACHMENTS

func (s *TrackerService) AddAttachment(actor, teamSlug, projectSlug, ticketSlug string, attachment domain.Attachment) (domain.Attachment, error) {
	_, ticket, err := s.ticketFor(actor, teamSlug, projectSlug, ticketSlug)
	if err != nil {
		return domain.Attachment{}, err
	}
	attachment.TicketID = ticket.ID
	attachment.UploadedBy = actor
	if err := s.tickets.AddAttachment(attachment); err != nil {
		return domain.Attachment{}, err
	}
	return attachment, nil
}

func (s *TrackerService) GetAttachment(actor, teamSlug, projectSlug, ticketSlug, id string) (domain.Attachment, error) {
	_, ticket, err := s.ticketFor(actor, teamSlug, projectSlug, ticketSlug)
	if err != nil {
		return domain.Attachment{}, err
	}
	attachment, err := s.tickets.GetAttachment(id)
	if err != nil {
		return domain.Attachment{}, err
	}
	if attachment.TicketID != ticket.ID {
		return domain.Attachment{}, domain.ErrAttachmentNotFound
	}
	return attachment, nil
}

func (s *TrackerService) ListAttachments(actor, teamSlug, projectSlug, ticketSlug string) ([]domain.Attachment, error) {
	_, ticket, err := s.ticketFor(actor, teamSlug, projectSlug, ticketSlug)
	if err != nil {
		return nil, err
	}
	return s.tickets.ListAttachments(ticket.ID)
}

func (s *TrackerService) DeleteAttachment(actor, teamSlug, projectSlug, ticketSlug, id string) (domain.Attachment, error) {
	ctx, ticket, err := s.ticketFor(actor, teamSlug, projectSlug, ticketSlug)
	if err != nil {
		return domain.Attachment{}, err
	}
	attachment, err := s.tickets.GetAttachment(id)
	if err != nil {
		return domain.Attachment{}, err
	}
	if attachment.TicketID != ticket.ID {
		return domain.Attachment{}, domain.ErrAttachmentNotFound
	}
	if attachment.UploadedBy != actor && !ctx.isManager() {
		return domain.Attachment{}, ErrPermissionDenied
	}
	if err := s.tickets.DeleteAttachment(id); err != nil {
		return domain.Attachment{}, err
	}
	return attachment, nil
}

// NOTIFICATIONS

// notify fans the event out to the live activity stream and to email
// subscribers of the ticket and its project. Failures are logged, never
// propagated to the caller.
func (s *TrackerService) notify(ctx projectContext, ticket domain.Ticket, event domain.TicketEvent) {
	if s.activity != nil {
		s.activity.Broadcast(ctx.team.Slug, event)
	}
	if s.email == nil {
		return
	}
	recipients, err := s.notificationRecipients(ctx.project.ID, ticket.ID, event.Actor)
	if err != nil {
		s.log.Errorw("resolving notification recipients", "ticket", ticket.Slug, zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		return
	}
	go func() {
		if err := s.email.SendTicketNotification(event, recipients); err != nil {
			s.log.Errorw("sending ticket notification", "ticket", ticket.Slug, zap.Error(err))
		}
	}()
}

// notificationRecipients resolves subscriber usernames to email
// addresses, skipping the acting user and inactive accounts.
func (s *TrackerService) notificationRecipients(projectID, ticketID int64, actor string) ([]string, error) {
	ticketSubs, err := s.tickets.GetSubscribers(ticketID)
	if err != nil {
		return nil, err
	}
	projectSubs, err := s.projects.GetSubscribers(projectID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{actor: true}
	var recipients []string
	for _, username := range append(ticketSubs, projectSubs...) {
		if seen[username] {
			continue
		}
		seen[username] = true
		account, err := s.accounts.GetByUsername(username)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				continue
			}
			return nil, err
		}
		if account.Active && account.Email != "" {
			recipients = append(recipients, account.Email)
		}
	}
	return recipients, nil
}
