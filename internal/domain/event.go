package domain

// TicketEvent describes a single change on a ticket. Events are rendered
// into notification emails and broadcast on the team activity stream.
type TicketEvent struct {
	Action  string `json:"action"` // created | assigned | closed | reopened | commented
	Team    string `json:"team"`
	Project string `json:"project"`
	Ticket  string `json:"ticket"`
	Title   string `json:"title"`
	Actor   string `json:"actor"`
	Detail  string `json:"detail,omitempty"`
}
