package wiki

import "time"

// Customer is a client company tracked in the CRM.
type Customer struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Industry     string    `json:"industry,omitempty"`
	ContactName  string    `json:"contact_name,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Engineer is a staff member who can be assigned to customers.
type Engineer struct {
	ID                int      `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email,omitempty"`
	Skills            []string `json:"skills,omitempty"`
	Status            string   `json:"status"`
	DepartmentID      *int     `json:"department_id,omitempty"`
	CurrentCustomerID *int     `json:"current_customer_id,omitempty"`
	CurrentCustomer   *string  `json:"current_customer_name,omitempty"`
	AvailableFrom     *string  `json:"available_from,omitempty"`
}

// Incident is a support ticket.
type Incident struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	CustomerID  *int      `json:"customer_id,omitempty"`
	AssigneeID  *int      `json:"assignee_id,omitempty"`
	Assignee    *string   `json:"assignee_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Opportunity is a potential engagement that needs engineers.
type Opportunity struct {
	ID             int      `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Status         string   `json:"status"`
	CustomerID     *int     `json:"customer_id,omitempty"`
	Customer       *string  `json:"customer_name,omitempty"`
	RequiredSkills []string `json:"required_skills,omitempty"`
	StartDate      *string  `json:"start_date,omitempty"`
}

// Page is a wiki page.
type Page struct {
	ID          int          `json:"id"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Tags        []string     `json:"tags,omitempty"`
	AuthorID    *int         `json:"author_id,omitempty"`
	Author      *string      `json:"author_name,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Attachment is a file stored with a page.
type Attachment struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// User is an account on the primary backend.
type User struct {
	ID           int    `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role"`
	DepartmentID *int   `json:"department_id,omitempty"`
	IsActive     bool   `json:"is_active"`
}

// IsAdmin reports whether u has the admin role.
func (u User) IsAdmin() bool {
	return u.Role == "admin"
}

// Department groups users and engineers.
type Department struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ActivityLog is one audited action.
type ActivityLog struct {
	Timestamp  time.Time `json:"timestamp"`
	User       *string   `json:"user"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   *int      `json:"entity_id"`
	Details    string    `json:"details,omitempty"`
}

// LoginRecord is one login attempt.
type LoginRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Email     string    `json:"email"`
	Success   bool      `json:"success"`
	IPAddress string    `json:"ip_address"`
}

// DisplayName renders a possibly missing reference. Records whose referenced
// user, customer or engineer was deleted come back with a nil name.
func DisplayName(name *string, fallback string) string {
	if name == nil || *name == "" {
		return fallback
	}
	return *name
}
