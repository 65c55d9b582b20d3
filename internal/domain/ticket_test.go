package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "crash-on-login", Slugify("Crash on login"))
	assert.Equal(t, "v2-0-release", Slugify("  v2.0 Release!  "))
	assert.Equal(t, "", Slugify("***"))
}

func TestNewTicket(t *testing.T) {
	ticket, err := NewTicket(1, " Crash on login ", "stack trace attached", PriorityHigh, "marie")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "Crash on login", ticket.Title)
	assert.Equal(t, "crash-on-login", ticket.Slug)
	assert.Equal(t, "marie", ticket.Submitter)
	assert.True(t, ticket.IsOpen)
	assert.Empty(t, ticket.Developer)
}

func TestNewTicketInvalid(t *testing.T) {
	_, err := NewTicket(1, "", "", PriorityLow, "marie")
	assert.Error(t, err)
	_, err = NewTicket(1, strings.Repeat("x", 101), "", PriorityLow, "marie")
	assert.Error(t, err)
	_, err = NewTicket(1, "Crash", "", TicketPriority(99), "marie")
	assert.Error(t, err)
	_, err = NewTicket(1, "***", "", PriorityLow, "marie")
	assert.Error(t, err)
}

func TestTicketClose(t *testing.T) {
	ticket, _ := NewTicket(1, "Crash on login", "", PriorityHigh, "marie")
	assert.Error(t, ticket.Close("  "))
	assert.True(t, ticket.IsOpen)

	assert.NoError(t, ticket.Close("fixed in a1b2c3"))
	assert.False(t, ticket.IsOpen)
	assert.Equal(t, "fixed in a1b2c3", ticket.Resolution)

	assert.Equal(t, ErrTicketClosed, ticket.Close("again"))
}

func TestTicketReopen(t *testing.T) {
	ticket, _ := NewTicket(1, "Crash on login", "", PriorityHigh, "marie")
	assert.NoError(t, ticket.Close("fixed"))
	ticket.Reopen()
	assert.True(t, ticket.IsOpen)
	assert.Empty(t, ticket.Resolution)
}

func TestNewComment(t *testing.T) {
	comment, err := NewComment(7, "marie", "  still broken  ")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, int64(7), comment.TicketID)
	assert.Equal(t, "still broken", comment.Text)

	_, err = NewComment(7, "marie", "   ")
	assert.Error(t, err)
}

func TestNewTeam(t *testing.T) {
	team, err := NewTeam("Core Team", "the core")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "core-team", team.Slug)

	_, err = NewTeam("", "")
	assert.Error(t, err)
	_, err = NewTeam("!!!", "")
	assert.Error(t, err)
}

func TestNewProject(t *testing.T) {
	project, err := NewProject(1, "Web App", "")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, int64(1), project.TeamID)
	assert.Equal(t, "web-app", project.Slug)
	assert.False(t, project.IsArchived)
}
