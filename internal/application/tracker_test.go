package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/bugtrack/bugtrack-server/internal/infrastructure/security"
	"github.com/bugtrack/bugtrack-server/internal/mock"
)

type trackerFixture struct {
	service  *TrackerService
	teams    *mock.TeamsRepository
	projects *mock.ProjectsRepository
	tickets  *mock.TicketsRepository
	accounts *mock.AccountsRepository
	email    *mock.TrackerEmailService
}

func addActiveAccount(t *testing.T, repo *mock.AccountsRepository, username string) {
	t.Helper()
	account, err := domain.NewAccount(username, username+"@example.com", "", "", "pw")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.NoError(t, account.Activate())
	assert.NoError(t, repo.Create(account))
}

// newTrackerFixture builds a service with team "core-team" (admin alice,
// members bob and carol) and its project "web-app" (manager alice,
// developer bob).
func newTrackerFixture(t *testing.T) trackerFixture {
	t.Helper()
	f := trackerFixture{
		teams:    mock.NewTeamsRepository(),
		projects: mock.NewProjectsRepository(),
		tickets:  mock.NewTicketsRepository(),
		accounts: mock.NewAccountsRepository(),
		email:    &mock.TrackerEmailService{},
	}
	tokenGen := security.NewTokenGenerator("test-secret", "invitations", time.Hour)
	f.service = NewTrackerService(zap.NewNop().Sugar(), f.teams, f.projects, f.tickets, f.accounts, f.email, nil, tokenGen)

	for _, username := range []string{"alice", "bob", "carol", "dave"} {
		addActiveAccount(t, f.accounts, username)
	}
	_, err := f.service.CreateTeam("alice", "Core Team", "")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	team, _ := f.teams.GetBySlug("core-team")
	assert.NoError(t, f.teams.AddMember(team.ID, "bob", domain.TeamRoleMember))
	assert.NoError(t, f.teams.AddMember(team.ID, "carol", domain.TeamRoleMember))

	_, err = f.service.CreateProject("alice", "core-team", "Web App", "")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.NoError(t, f.service.AddProjectMember("alice", "core-team", "web-app", "bob", domain.ProjectRoleDeveloper))
	return f
}

func (f trackerFixture) createTicket(t *testing.T, actor, title string) domain.Ticket {
	t.Helper()
	ticket, err := f.service.CreateTicket(actor, "core-team", "web-app", title, "", domain.PriorityLow)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	return ticket
}

func TestTeamAccess(t *testing.T) {
	f := newTrackerFixture(t)

	_, _, err := f.service.GetTeam("dave", "core-team")
	assert.Equal(t, ErrPermissionDenied, err)

	team, members, err := f.service.GetTeam("bob", "core-team")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "Core Team", team.Title)
	assert.Len(t, members, 3)
}

func TestUpdateTeamRequiresAdmin(t *testing.T) {
	f := newTrackerFixture(t)

	_, err := f.service.UpdateTeam("bob", "core-team", "new description")
	assert.Equal(t, ErrPermissionDenied, err)

	team, err := f.service.UpdateTeam("alice", "core-team", "new description")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "new description", team.Description)
	assert.Equal(t, "Core Team", team.Title)
}

func TestRemoveTeamMember(t *testing.T) {
	f := newTrackerFixture(t)

	// members can leave, but not remove others
	assert.Equal(t, ErrPermissionDenied, f.service.RemoveTeamMember("bob", "core-team", "carol"))
	assert.NoError(t, f.service.RemoveTeamMember("carol", "core-team", "carol"))
	assert.NoError(t, f.service.RemoveTeamMember("alice", "core-team", "bob"))

	_, _, err := f.service.GetTeam("bob", "core-team")
	assert.Equal(t, ErrPermissionDenied, err)
}

func TestInvitationRoundtrip(t *testing.T) {
	f := newTrackerFixture(t)

	_, err := f.service.InviteToTeam("bob", "core-team", "dave@example.com")
	assert.Equal(t, ErrPermissionDenied, err)

	invitation, err := f.service.InviteToTeam("alice", "core-team", "dave@example.com")
	if !assert.NoError(t, err) {
		return
	}
	if !assert.Len(t, f.email.Invitations, 1) {
		return
	}
	sent := f.email.Invitations[0]
	assert.Equal(t, "dave@example.com", sent.To)
	assert.Equal(t, invitation.ID, sent.InvitationID)

	team, err := f.service.AcceptInvitation("dave", sent.InvitationID, sent.Token)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "core-team", team.Slug)

	_, _, err = f.service.GetTeam("dave", "core-team")
	assert.NoError(t, err)

	// second use fails, invitation was marked accepted
	_, err = f.service.AcceptInvitation("dave", sent.InvitationID, sent.Token)
	assert.Equal(t, domain.ErrInvitationUsed, err)
}

func TestAcceptInvitationBadToken(t *testing.T) {
	f := newTrackerFixture(t)
	invitation, err := f.service.InviteToTeam("alice", "core-team", "dave@example.com")
	if !assert.NoError(t, err) {
		return
	}
	_, err = f.service.AcceptInvitation("dave", invitation.ID, "1abcd-ffffffff")
	assert.Equal(t, ErrInvalidToken, err)
}

func TestCreateProjectRequiresTeamAdmin(t *testing.T) {
	f := newTrackerFixture(t)

	_, err := f.service.CreateProject("bob", "core-team", "Mobile App", "")
	assert.Equal(t, ErrPermissionDenied, err)

	project, err := f.service.CreateProject("alice", "core-team", "Mobile App", "")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "mobile-app", project.Slug)

	// creator becomes the project manager
	membership, err := f.projects.GetMembership(project.ID, "alice")
	if !assert.NoError(t, err) {
		return
	}
	assert.True(t, membership.IsManager())
}

func TestProjectMembers(t *testing.T) {
	f := newTrackerFixture(t)

	// developer cannot manage members
	err := f.service.AddProjectMember("bob", "core-team", "web-app", "carol", domain.ProjectRoleDeveloper)
	assert.Equal(t, ErrPermissionDenied, err)

	// target must be a team member first
	err = f.service.AddProjectMember("alice", "core-team", "web-app", "dave", domain.ProjectRoleDeveloper)
	assert.Equal(t, domain.ErrNotTeamMember, err)

	assert.NoError(t, f.service.AddProjectMember("alice", "core-team", "web-app", "carol", domain.ProjectRoleDeveloper))
	assert.NoError(t, f.service.UpdateProjectRole("alice", "core-team", "web-app", "carol", domain.ProjectRoleManager))

	// members can leave on their own
	assert.NoError(t, f.service.RemoveProjectMember("bob", "core-team", "web-app", "bob"))
	assert.Equal(t, ErrPermissionDenied, f.service.RemoveProjectMember("bob", "core-team", "web-app", "carol"))
}

func TestArchivedProjectRejectsTickets(t *testing.T) {
	f := newTrackerFixture(t)
	_, err := f.service.UpdateProject("alice", "core-team", "web-app", "", true)
	if !assert.NoError(t, err) {
		return
	}
	_, err = f.service.CreateTicket("bob", "core-team", "web-app", "Crash", "", domain.PriorityLow)
	assert.Equal(t, domain.ErrProjectArchived, err)
}

func TestCreateTicket(t *testing.T) {
	f := newTrackerFixture(t)

	_, err := f.service.CreateTicket("dave", "core-team", "web-app", "Crash on login", "", domain.PriorityHigh)
	assert.Equal(t, ErrPermissionDenied, err)

	ticket := f.createTicket(t, "bob", "Crash on login")
	assert.Equal(t, "crash-on-login", ticket.Slug)
	assert.Equal(t, "bob", ticket.Submitter)

	// submitter is auto-subscribed
	subscribers, _ := f.tickets.GetSubscribers(ticket.ID)
	assert.Equal(t, []string{"bob"}, subscribers)

	// duplicate titles get a distinct slug
	second := f.createTicket(t, "bob", "Crash on login")
	assert.Equal(t, "crash-on-login-1", second.Slug)
}

func TestAssignTicket(t *testing.T) {
	f := newTrackerFixture(t)
	ticket := f.createTicket(t, "bob", "Crash on login")

	_, err := f.service.AssignTicket("bob", "core-team", "web-app", ticket.Slug, "bob")
	assert.Equal(t, ErrPermissionDenied, err)

	// assignee must be a project member
	_, err = f.service.AssignTicket("alice", "core-team", "web-app", ticket.Slug, "carol")
	assert.Equal(t, domain.ErrNotProjectMember, err)

	assigned, err := f.service.AssignTicket("alice", "core-team", "web-app", ticket.Slug, "bob")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "bob", assigned.Developer)

	// assignment auto-subscribes the developer
	subscribers, _ := f.tickets.GetSubscribers(ticket.ID)
	assert.Contains(t, subscribers, "bob")

	open, err := f.service.ListAssignedTickets("bob")
	if !assert.NoError(t, err) {
		return
	}
	assert.Len(t, open, 1)
}

func TestCloseAndReopenTicket(t *testing.T) {
	f := newTrackerFixture(t)
	ticket := f.createTicket(t, "bob", "Crash on login")
	_, err := f.service.AssignTicket("alice", "core-team", "web-app", ticket.Slug, "bob")
	if !assert.NoError(t, err) {
		return
	}

	// carol is neither manager nor the assigned developer
	_, err = f.service.CloseTicket("carol", "core-team", "web-app", ticket.Slug, "fixed")
	assert.Equal(t, ErrPermissionDenied, err)

	_, err = f.service.CloseTicket("bob", "core-team", "web-app", ticket.Slug, "  ")
	assert.Error(t, err)

	closed, err := f.service.CloseTicket("bob", "core-team", "web-app", ticket.Slug, "fixed in a1b2c3")
	if !assert.NoError(t, err) {
		return
	}
	assert.False(t, closed.IsOpen)
	assert.Equal(t, "fixed in a1b2c3", closed.Resolution)

	_, err = f.service.CloseTicket("bob", "core-team", "web-app", ticket.Slug, "again")
	assert.Equal(t, domain.ErrTicketClosed, err)

	// only manager or submitter may reopen
	reopened, err := f.service.ReopenTicket("bob", "core-team", "web-app", ticket.Slug)
	if !assert.NoError(t, err) {
		return
	}
	assert.True(t, reopened.IsOpen)
	assert.Empty(t, reopened.Resolution)
}

func TestDeleteTicketRequiresManager(t *testing.T) {
	f := newTrackerFixture(t)
	ticket := f.createTicket(t, "bob", "Crash on login")

	assert.Equal(t, ErrPermissionDenied, f.service.DeleteTicket("bob", "core-team", "web-app", ticket.Slug))
	assert.NoError(t, f.service.DeleteTicket("alice", "core-team", "web-app", ticket.Slug))

	_, err := f.service.GetTicket("bob", "core-team", "web-app", ticket.Slug)
	assert.Equal(t, domain.ErrTicketNotFound, err)
}

func TestTicketNotifications(t *testing.T) {
	f := newTrackerFixture(t)
	assert.NoError(t, f.service.SubscribeProject("alice", "core-team", "web-app"))

	ticket := f.createTicket(t, "bob", "Crash on login")

	// alice subscribes to the project, bob is the actor: only alice
	// gets the email
	assert.Eventually(t, func() bool {
		return len(f.email.Notifications()) == 1
	}, time.Second, 10*time.Millisecond)
	sent := f.email.Notifications()[0]
	assert.Equal(t, "created", sent.Event.Action)
	assert.Equal(t, "bob", sent.Event.Actor)
	assert.Equal(t, ticket.Slug, sent.Event.Ticket)
	assert.Equal(t, []string{"alice@example.com"}, sent.Recipients)

	_, err := f.service.CloseTicket("alice", "core-team", "web-app", ticket.Slug, "fixed")
	if !assert.NoError(t, err) {
		return
	}

	// bob is auto-subscribed to his ticket, alice is now the actor
	assert.Eventually(t, func() bool {
		return len(f.email.Notifications()) == 2
	}, time.Second, 10*time.Millisecond)
	closed := f.email.Notifications()[1]
	assert.Equal(t, "closed", closed.Event.Action)
	assert.Equal(t, "fixed", closed.Event.Detail)
	assert.Equal(t, []string{"bob@example.com"}, closed.Recipients)
}

func TestComments(t *testing.T) {
	f := newTrackerFixture(t)
	ticket := f.createTicket(t, "bob", "Crash on login")

	_, err := f.service.AddComment("dave", "core-team", "web-app", ticket.Slug, "me too")
	assert.Equal(t, ErrPermissionDenied, err)

	comment, err := f.service.AddComment("bob", "core-team", "web-app", ticket.Slug, "still broken")
	if !assert.NoError(t, err) {
		return
	}

	// only the author edits
	_, err = f.service.UpdateComment("alice", "core-team", "web-app", ticket.Slug, comment.ID, "edited")
	assert.Equal(t, ErrPermissionDenied, err)
	updated, err := f.service.UpdateComment("bob", "core-team", "web-app", ticket.Slug, comment.ID, "edited")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "edited", updated.Text)

	second, err := f.service.AddComment("alice", "core-team", "web-app", ticket.Slug, "looking into it")
	if !assert.NoError(t, err) {
		return
	}

	comments, err := f.service.ListComments("bob", "core-team", "web-app", ticket.Slug)
	if !assert.NoError(t, err) {
		return
	}
	if assert.Len(t, comments, 2) {
		assert.Equal(t, second.ID, comments[0].ID)
	}

	// author or manager may delete
	assert.Equal(t, ErrPermissionDenied, f.service.DeleteComment("carol", "core-team", "web-app", ticket.Slug, comment.ID))
	assert.NoError(t, f.service.DeleteComment("alice", "core-team", "web-app", ticket.Slug, comment.ID))
}

func TestCommentScopedToTicket(t *testing.T) {
	f := newTrackerFixture(t)
	ticket := f.createTicket(t, "bob", "Crash on login")
	comment, err := f.service.AddComment("bob", "core-team", "web-app", ticket.Slug, "still broken")
	if !assert.NoError(t, err) {
		return
	}

	// a manager of an unrelated project must not reach the comment
	// through their own team and project slugs
	addActiveAccount(t, f.accounts, "mallory")
	team, err := f.service.CreateTeam("mallory", "Side Team", "")
	if !assert.NoError(t, err) {
		return
	}
	project, err := f.service.CreateProject("mallory", team.Slug, "Side App", "")
	if !assert.NoError(t, err) {
		return
	}
	foreign, err := f.service.CreateTicket("mallory", team.Slug, project.Slug, "Unrelated", "", domain.PriorityLow)
	if !assert.NoError(t, err) {
		return
	}

	err = f.service.DeleteComment("mallory", team.Slug, project.Slug, foreign.Slug, comment.ID)
	assert.Equal(t, domain.ErrCommentNotFound, err)
	_, err = f.service.UpdateComment("mallory", team.Slug, project.Slug, foreign.Slug, comment.ID, "hijacked")
	assert.Equal(t, domain.ErrCommentNotFound, err)

	// comment IDs are also bound to the ticket within the same project
	other := f.createTicket(t, "bob", "Other issue")
	err = f.service.DeleteComment("alice", "core-team", "web-app", other.Slug, comment.ID)
	assert.Equal(t, domain.ErrCommentNotFound, err)

	comments, err := f.service.ListComments("bob", "core-team", "web-app", ticket.Slug)
	if assert.NoError(t, err) && assert.Len(t, comments, 1) {
		assert.Equal(t, "still broken", comments[0].Text)
	}
}

func TestTicketReadsRequireProjectMembership(t *testing.T) {
	f := newTrackerFixture(t)
	ticket := f.createTicket(t, "bob", "Crash on login")

	// carol belongs to the team but not to the project
	_, err := f.service.GetTicket("carol", "core-team", "web-app", ticket.Slug)
	assert.Equal(t, ErrPermissionDenied, err)
	_, err = f.service.ListTickets("carol", "core-team", "web-app")
	assert.Equal(t, ErrPermissionDenied, err)
	_, err = f.service.ListComments("carol", "core-team", "web-app", ticket.Slug)
	assert.Equal(t, ErrPermissionDenied, err)
	_, err = f.service.ListAttachments("carol", "core-team", "web-app", ticket.Slug)
	assert.Equal(t, ErrPermissionDenied, err)
	assert.Equal(t, ErrPermissionDenied, f.service.SubscribeTicket("carol", "core-team", "web-app", ticket.Slug))

	_, err = f.service.GetTicket("bob", "core-team", "web-app", ticket.Slug)
	assert.NoError(t, err)
}

func TestAttachments(t *testing.T) {
	f := newTrackerFixture(t)
	ticket := f.createTicket(t, "bob", "Crash on login")

	attachment := domain.Attachment{
		ID:          "a1",
		Filename:    "trace.log",
		Key:         "attachments/a1/trace.log",
		Size:        128,
		ContentType: "text/plain",
	}
	_, err := f.service.AddAttachment("dave", "core-team", "web-app", ticket.Slug, attachment)
	assert.Equal(t, ErrPermissionDenied, err)

	stored, err := f.service.AddAttachment("bob", "core-team", "web-app", ticket.Slug, attachment)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, ticket.ID, stored.TicketID)
	assert.Equal(t, "bob", stored.UploadedBy)

	got, err := f.service.GetAttachment("alice", "core-team", "web-app", ticket.Slug, "a1")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "trace.log", got.Filename)

	// attachment lookup is scoped to its ticket
	other := f.createTicket(t, "bob", "Other issue")
	_, err = f.service.GetAttachment("alice", "core-team", "web-app", other.Slug, "a1")
	assert.Equal(t, domain.ErrAttachmentNotFound, err)

	_, err = f.service.DeleteAttachment("carol", "core-team", "web-app", ticket.Slug, "a1")
	assert.Equal(t, ErrPermissionDenied, err)
	deleted, err := f.service.DeleteAttachment("bob", "core-team", "web-app", ticket.Slug, "a1")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "attachments/a1/trace.log", deleted.Key)
}

func TestSubscriptions(t *testing.T) {
	f := newTrackerFixture(t)
	ticket := f.createTicket(t, "alice", "Crash on login")

	assert.NoError(t, f.service.SubscribeTicket("bob", "core-team", "web-app", ticket.Slug))
	subscribers, _ := f.tickets.GetSubscribers(ticket.ID)
	assert.Contains(t, subscribers, "bob")

	assert.NoError(t, f.service.UnsubscribeTicket("bob", "core-team", "web-app", ticket.Slug))
	subscribers, _ = f.tickets.GetSubscribers(ticket.ID)
	assert.NotContains(t, subscribers, "bob")

	assert.Equal(t, ErrPermissionDenied, f.service.SubscribeTicket("dave", "core-team", "web-app", ticket.Slug))
}
