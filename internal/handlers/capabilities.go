package handlers

import "github.com/concierge-dev/concierge/internal/registry"

// Registered handler names.
const (
	CodeHostingHandler  = "code-hosting"
	EmailHandler        = "email"
	CalendarHandler     = "calendar"
	NotesHandler        = "notes"
	TaskTrackingHandler = "task-tracking"
)

// NewCodeHosting wraps a code hosting client (pull requests, issues, CI).
func NewCodeHosting(client Client) *CapabilityHandler {
	return NewCapabilityHandler(CodeHostingHandler, registry.Metadata{
		Description: "Pull requests, issues, and CI status on the code hosting service.",
		Patterns: []string{
			`(?i)\b(pull request|PR|merge request)s?\b`,
			`(?i)\bissue\s*#?\d+\b`,
			`(?i)\bci (status|pipeline|build)\b`,
		},
		Keywords: []string{
			"pull", "request", "pr", "merge", "issue", "branch", "commit",
			"review", "ci", "pipeline", "build", "repository", "repo",
		},
		Examples: []string{
			"list my open pull requests",
			"what's the CI status on the release branch",
			"show issue 142 in the backend repo",
			"who reviewed my last merge request",
		},
	}, client, "search")
}

// NewEmail wraps an email client (search, read, draft, send).
func NewEmail(client Client) *CapabilityHandler {
	return NewCapabilityHandler(EmailHandler, registry.Metadata{
		Description: "Searching, reading, and sending email.",
		Patterns: []string{
			`(?i)\b(send|draft|write) (an? )?e?mail\b`,
			`(?i)\bin(box|coming mail)\b`,
			`(?i)\bunread (e?mails?|messages?)\b`,
		},
		Keywords: []string{
			"email", "mail", "inbox", "unread", "send", "draft", "reply",
			"message", "attachment", "subject",
		},
		Examples: []string{
			"any unread emails from the bank",
			"draft a reply to the contractor",
			"send an email to alex about the invoice",
			"search my inbox for the flight confirmation",
		},
	}, client, "search")
}

// NewCalendar wraps a calendar client (events, availability, scheduling).
func NewCalendar(client Client) *CapabilityHandler {
	return NewCapabilityHandler(CalendarHandler, registry.Metadata{
		Description: "Calendar events, availability, and scheduling.",
		Patterns: []string{
			`(?i)\b(schedule|book|set up) (a |an )?(meeting|call|appointment)\b`,
			`(?i)\b(my )?calendar\b`,
			`(?i)\bam i free\b`,
		},
		Keywords: []string{
			"calendar", "meeting", "appointment", "schedule", "event",
			"free", "busy", "availability", "invite", "reschedule",
		},
		Examples: []string{
			"what's on my calendar tomorrow",
			"am I free thursday afternoon",
			"schedule a call with the accountant next week",
			"move my 3pm meeting to friday",
		},
	}, client, "list")
}

// NewNotes wraps a notes client (search and capture).
func NewNotes(client Client) *CapabilityHandler {
	return NewCapabilityHandler(NotesHandler, registry.Metadata{
		Description: "Searching and capturing personal notes.",
		Patterns: []string{
			`(?i)\b(take|make|save) a note\b`,
			`(?i)\b(my|the) notes?\b`,
		},
		Keywords: []string{
			"note", "notes", "notebook", "jot", "remember", "wrote",
			"capture", "journal",
		},
		Examples: []string{
			"find my note about the garden fence",
			"take a note: renew the domain in december",
			"what did I write down after the dentist visit",
		},
	}, client, "search")
}

// NewTaskTracking wraps the external task tracker client. This is the
// user's tracker (boards, tickets), distinct from the internal task queue.
func NewTaskTracking(client Client) *CapabilityHandler {
	return NewCapabilityHandler(TaskTrackingHandler, registry.Metadata{
		Description: "Tickets and boards on the external task tracker.",
		Patterns: []string{
			`(?i)\b(ticket|card)s?\s*#?\d*\b`,
			`(?i)\b(kanban|sprint) board\b`,
			`(?i)\bbacklog\b`,
		},
		Keywords: []string{
			"ticket", "board", "backlog", "sprint", "card", "todo",
			"assign", "tracker", "column",
		},
		Examples: []string{
			"what's left in the sprint backlog",
			"move ticket 88 to done",
			"assign the onboarding card to me",
		},
	}, client, "list")
}
