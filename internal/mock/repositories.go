package mock

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bugtrack/bugtrack-server/internal/domain"
)

// AccountsRepository is an in-memory domain.AccountsRepository.
type AccountsRepository struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func NewAccountsRepository() *AccountsRepository {
	return &AccountsRepository{accounts: make(map[string]domain.Account)}
}

func (r *AccountsRepository) Create(account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.Username]; ok {
		return domain.ErrAccountExists
	}
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return domain.ErrAccountExists
		}
	}
	r.accounts[account.Username] = account
	return nil
}

func (r *AccountsRepository) Update(account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.Username]; !ok {
		return domain.ErrAccountNotFound
	}
	r.accounts[account.Username] = account
	return nil
}

func (r *AccountsRepository) Delete(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[username]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.accounts, username)
	return nil
}

func (r *AccountsRepository) GetByUsername(username string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[username]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return account, nil
}

func (r *AccountsRepository) GetByEmail(email string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return domain.Account{}, domain.ErrAccountNotFound
}

func (r *AccountsRepository) EmailExists(email string) (bool, error) {
	_, err := r.GetByEmail(email)
	if err == domain.ErrAccountNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *AccountsRepository) UsernameExists(username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.accounts[username]
	return ok, nil
}

func (r *AccountsRepository) GetActiveAccounts() ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts := make([]domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		if a.Active {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })
	return accounts, nil
}

func (r *AccountsRepository) GetAllAccounts() ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts := make([]domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })
	return accounts, nil
}

// TeamsRepository is an in-memory domain.TeamsRepository.
type TeamsRepository struct {
	mu          sync.Mutex
	nextID      int64
	teams       map[int64]domain.Team
	memberships map[int64]map[string]domain.TeamMembership
	invitations map[string]domain.TeamInvitation
}

func NewTeamsRepository() *TeamsRepository {
	return &TeamsRepository{
		nextID:      1,
		teams:       make(map[int64]domain.Team),
		memberships: make(map[int64]map[string]domain.TeamMembership),
		invitations: make(map[string]domain.TeamInvitation),
	}
}

func (r *TeamsRepository) Create(team domain.Team, creator string) (domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if t.Slug == team.Slug {
			return domain.Team{}, domain.ErrTeamExists
		}
	}
	team.ID = r.nextID
	r.nextID++
	team.Created = time.Now().UTC()
	r.teams[team.ID] = team
	r.memberships[team.ID] = map[string]domain.TeamMembership{
		creator: {TeamID: team.ID, Username: creator, Role: domain.TeamRoleAdmin, Created: team.Created},
	}
	return team, nil
}

func (r *TeamsRepository) Update(team domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[team.ID]; !ok {
		return domain.ErrTeamNotFound
	}
	r.teams[team.ID] = team
	return nil
}

func (r *TeamsRepository) Delete(teamID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[teamID]; !ok {
		return domain.ErrTeamNotFound
	}
	delete(r.teams, teamID)
	delete(r.memberships, teamID)
	return nil
}

func (r *TeamsRepository) GetBySlug(slug string) (domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if t.Slug == slug {
			return t, nil
		}
	}
	return domain.Team{}, domain.ErrTeamNotFound
}

func (r *TeamsRepository) ListForUser(username string) ([]domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var teams []domain.Team
	for id, members := range r.memberships {
		if _, ok := members[username]; ok {
			teams = append(teams, r.teams[id])
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Title < teams[j].Title })
	return teams, nil
}

func (r *TeamsRepository) GetMembership(teamID int64, username string) (domain.TeamMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[teamID][username]
	if !ok {
		return domain.TeamMembership{}, domain.ErrNotTeamMember
	}
	return m, nil
}

func (r *TeamsRepository) GetMemberships(teamID int64) ([]domain.TeamMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var members []domain.TeamMembership
	for _, m := range r.memberships[teamID] {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Username < members[j].Username })
	return members, nil
}

func (r *TeamsRepository) AddMember(teamID int64, username string, role domain.TeamRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[teamID]; !ok {
		return domain.ErrTeamNotFound
	}
	if _, ok := r.memberships[teamID][username]; ok {
		return domain.ErrAlreadyTeamMember
	}
	r.memberships[teamID][username] = domain.TeamMembership{
		TeamID: teamID, Username: username, Role: role, Created: time.Now().UTC(),
	}
	return nil
}

func (r *TeamsRepository) UpdateMemberRole(teamID int64, username string, role domain.TeamRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[teamID][username]
	if !ok {
		return domain.ErrNotTeamMember
	}
	m.Role = role
	m.Modified = time.Now().UTC()
	r.memberships[teamID][username] = m
	return nil
}

func (r *TeamsRepository) RemoveMember(teamID int64, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memberships[teamID][username]; !ok {
		return domain.ErrNotTeamMember
	}
	delete(r.memberships[teamID], username)
	return nil
}

func (r *TeamsRepository) CreateInvitation(invitation domain.TeamInvitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	invitation.Created = time.Now().UTC()
	r.invitations[invitation.ID] = invitation
	return nil
}

func (r *TeamsRepository) GetInvitation(id string) (domain.TeamInvitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invitations[id]
	if !ok {
		return domain.TeamInvitation{}, domain.ErrInvitationExpired
	}
	return inv, nil
}

func (r *TeamsRepository) ListInvitations(teamID int64) ([]domain.TeamInvitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var invitations []domain.TeamInvitation
	for _, inv := range r.invitations {
		if inv.TeamID == teamID {
			invitations = append(invitations, inv)
		}
	}
	sort.Slice(invitations, func(i, j int) bool { return invitations[i].ID < invitations[j].ID })
	return invitations, nil
}

func (r *TeamsRepository) MarkInvitationAccepted(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invitations[id]
	if !ok {
		return domain.ErrInvitationExpired
	}
	if inv.Accepted {
		return domain.ErrInvitationUsed
	}
	inv.Accepted = true
	r.invitations[id] = inv
	return nil
}

// ProjectsRepository is an in-memory domain.ProjectsRepository.
type ProjectsRepository struct {
	mu          sync.Mutex
	nextID      int64
	projects    map[int64]domain.Project
	memberships map[int64]map[string]domain.ProjectMembership
	subscribers map[int64]map[string]bool
}

func NewProjectsRepository() *ProjectsRepository {
	return &ProjectsRepository{
		nextID:      1,
		projects:    make(map[int64]domain.Project),
		memberships: make(map[int64]map[string]domain.ProjectMembership),
		subscribers: make(map[int64]map[string]bool),
	}
}

func (r *ProjectsRepository) Create(project domain.Project, manager string) (domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.projects {
		if p.TeamID == project.TeamID && p.Slug == project.Slug {
			return domain.Project{}, domain.ErrProjectExists
		}
	}
	project.ID = r.nextID
	r.nextID++
	project.Created = time.Now().UTC()
	project.Modified = project.Created
	r.projects[project.ID] = project
	r.memberships[project.ID] = map[string]domain.ProjectMembership{
		manager: {ProjectID: project.ID, Username: manager, Role: domain.ProjectRoleManager, Created: project.Created},
	}
	r.subscribers[project.ID] = make(map[string]bool)
	return project, nil
}

func (r *ProjectsRepository) Update(project domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[project.ID]; !ok {
		return domain.ErrProjectNotFound
	}
	project.Modified = time.Now().UTC()
	r.projects[project.ID] = project
	return nil
}

func (r *ProjectsRepository) Delete(projectID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[projectID]; !ok {
		return domain.ErrProjectNotFound
	}
	delete(r.projects, projectID)
	delete(r.memberships, projectID)
	delete(r.subscribers, projectID)
	return nil
}

func (r *ProjectsRepository) GetBySlug(teamID int64, slug string) (domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.projects {
		if p.TeamID == teamID && p.Slug == slug {
			return p, nil
		}
	}
	return domain.Project{}, domain.ErrProjectNotFound
}

func (r *ProjectsRepository) ListForTeam(teamID int64) ([]domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var projects []domain.Project
	for _, p := range r.projects {
		if p.TeamID == teamID {
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Title < projects[j].Title })
	return projects, nil
}

func (r *ProjectsRepository) GetMembership(projectID int64, username string) (domain.ProjectMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[projectID][username]
	if !ok {
		return domain.ProjectMembership{}, domain.ErrNotProjectMember
	}
	return m, nil
}

func (r *ProjectsRepository) GetMemberships(projectID int64) ([]domain.ProjectMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var members []domain.ProjectMembership
	for _, m := range r.memberships[projectID] {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Username < members[j].Username })
	return members, nil
}

func (r *ProjectsRepository) AddMember(projectID int64, username string, role domain.ProjectRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[projectID]; !ok {
		return domain.ErrProjectNotFound
	}
	if _, ok := r.memberships[projectID][username]; ok {
		return domain.ErrAlreadyProjectMember
	}
	r.memberships[projectID][username] = domain.ProjectMembership{
		ProjectID: projectID, Username: username, Role: role, Created: time.Now().UTC(),
	}
	return nil
}

func (r *ProjectsRepository) UpdateMemberRole(projectID int64, username string, role domain.ProjectRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[projectID][username]
	if !ok {
		return domain.ErrNotProjectMember
	}
	m.Role = role
	m.Modified = time.Now().UTC()
	r.memberships[projectID][username] = m
	return nil
}

func (r *ProjectsRepository) RemoveMember(projectID int64, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memberships[projectID][username]; !ok {
		return domain.ErrNotProjectMember
	}
	delete(r.memberships[projectID], username)
	return nil
}

func (r *ProjectsRepository) Subscribe(projectID int64, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subscribers[projectID] == nil {
		r.subscribers[projectID] = make(map[string]bool)
	}
	r.subscribers[projectID][username] = true
	return nil
}

func (r *ProjectsRepository) Unsubscribe(projectID int64, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers[projectID], username)
	return nil
}

func (r *ProjectsRepository) GetSubscribers(projectID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var subscribers []string
	for username := range r.subscribers[projectID] {
		subscribers = append(subscribers, username)
	}
	sort.Strings(subscribers)
	return subscribers, nil
}

// TicketsRepository is an in-memory domain.TicketsRepository.
type TicketsRepository struct {
	mu            sync.Mutex
	nextID        int64
	nextCommentID int64
	tickets       map[int64]domain.Ticket
	subscribers   map[int64]map[string]bool
	attachments   map[string]domain.Attachment
	comments      map[int64]domain.Comment
}

func NewTicketsRepository() *TicketsRepository {
	return &TicketsRepository{
		nextID:        1,
		nextCommentID: 1,
		tickets:       make(map[int64]domain.Ticket),
		subscribers:   make(map[int64]map[string]bool),
		attachments:   make(map[string]domain.Attachment),
		comments:      make(map[int64]domain.Comment),
	}
}

func (r *TicketsRepository) slugTaken(projectID int64, slug string) bool {
	for _, t := range r.tickets {
		if t.ProjectID == projectID && t.Slug == slug {
			return true
		}
	}
	return false
}

func (r *TicketsRepository) Create(ticket domain.Ticket) (domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slug := ticket.Slug
	for i := 1; r.slugTaken(ticket.ProjectID, slug); i++ {
		slug = fmt.Sprintf("%s-%d", ticket.Slug, i)
	}
	ticket.Slug = slug
	ticket.ID = r.nextID
	r.nextID++
	ticket.Created = time.Now().UTC()
	ticket.Modified = ticket.Created
	r.tickets[ticket.ID] = ticket
	r.subscribers[ticket.ID] = make(map[string]bool)
	return ticket, nil
}

func (r *TicketsRepository) Update(ticket domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return domain.ErrTicketNotFound
	}
	ticket.Modified = time.Now().UTC()
	r.tickets[ticket.ID] = ticket
	return nil
}

func (r *TicketsRepository) Delete(ticketID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticketID]; !ok {
		return domain.ErrTicketNotFound
	}
	delete(r.tickets, ticketID)
	delete(r.subscribers, ticketID)
	return nil
}

func (r *TicketsRepository) GetBySlug(projectID int64, slug string) (domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.ProjectID == projectID && t.Slug == slug {
			return t, nil
		}
	}
	return domain.Ticket{}, domain.ErrTicketNotFound
}

func (r *TicketsRepository) ListForProject(projectID int64) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var tickets []domain.Ticket
	for _, t := range r.tickets {
		if t.ProjectID == projectID {
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID > tickets[j].ID })
	return tickets, nil
}

func (r *TicketsRepository) ListAssigned(username string) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var tickets []domain.Ticket
	for _, t := range r.tickets {
		if t.IsOpen && t.Developer == username {
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].Priority > tickets[j].Priority })
	return tickets, nil
}

func (r *TicketsRepository) Subscribe(ticketID int64, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subscribers[ticketID] == nil {
		r.subscribers[ticketID] = make(map[string]bool)
	}
	r.subscribers[ticketID][username] = true
	return nil
}

func (r *TicketsRepository) Unsubscribe(ticketID int64, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers[ticketID], username)
	return nil
}

func (r *TicketsRepository) GetSubscribers(ticketID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var subscribers []string
	for username := range r.subscribers[ticketID] {
		subscribers = append(subscribers, username)
	}
	sort.Strings(subscribers)
	return subscribers, nil
}

func (r *TicketsRepository) AddAttachment(attachment domain.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attachment.Created = time.Now().UTC()
	r.attachments[attachment.ID] = attachment
	return nil
}

func (r *TicketsRepository) GetAttachment(id string) (domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attachments[id]
	if !ok {
		return domain.Attachment{}, domain.ErrAttachmentNotFound
	}
	return a, nil
}

func (r *TicketsRepository) ListAttachments(ticketID int64) ([]domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var attachments []domain.Attachment
	for _, a := range r.attachments {
		if a.TicketID == ticketID {
			attachments = append(attachments, a)
		}
	}
	sort.Slice(attachments, func(i, j int) bool { return attachments[i].ID < attachments[j].ID })
	return attachments, nil
}

func (r *TicketsRepository) DeleteAttachment(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attachments[id]; !ok {
		return domain.ErrAttachmentNotFound
	}
	delete(r.attachments, id)
	return nil
}

func (r *TicketsRepository) CreateComment(comment domain.Comment) (domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = r.nextCommentID
	r.nextCommentID++
	comment.Created = time.Now().UTC()
	comment.Modified = comment.Created
	r.comments[comment.ID] = comment
	return comment, nil
}

func (r *TicketsRepository) UpdateComment(comment domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[comment.ID]; !ok {
		return domain.ErrCommentNotFound
	}
	comment.Modified = time.Now().UTC()
	r.comments[comment.ID] = comment
	return nil
}

func (r *TicketsRepository) DeleteComment(commentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[commentID]; !ok {
		return domain.ErrCommentNotFound
	}
	delete(r.comments, commentID)
	return nil
}

func (r *TicketsRepository) GetComment(commentID int64) (domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[commentID]
	if !ok {
		return domain.Comment{}, domain.ErrCommentNotFound
	}
	return c, nil
}

func (r *TicketsRepository) ListComments(ticketID int64) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var comments []domain.Comment
	for _, c := range r.comments {
		if c.TicketID == ticketID {
			comments = append(comments, c)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID > comments[j].ID })
	return comments, nil
}
