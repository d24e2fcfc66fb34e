// Package wiki provides typed access to the primary wiki/CRM backend.
package wiki

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/raphaelgruber/wikidesk/internal/client"
	"golang.org/x/oauth2"
)

// Fields is a loosely typed create/update payload. The backend owns the schema.
type Fields map[string]any

// Resource is a REST collection at a fixed path supporting list, get,
// create, update and delete.
type Resource[T any] struct {
	c    *client.Client
	path string
}

// NewResource returns a Resource rooted at path (e.g. "/customers").
func NewResource[T any](c *client.Client, path string) Resource[T] {
	return Resource[T]{c: c, path: path}
}

// List returns every record matching q.
func (r Resource[T]) List(ctx context.Context, q url.Values) ([]T, error) {
	var out []T
	if err := r.c.Get(ctx, r.path, &out, client.WithQuery(q)); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the record with id.
func (r Resource[T]) Get(ctx context.Context, id int) (*T, error) {
	var out T
	if err := r.c.Get(ctx, r.item(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create posts fields and returns the created record.
func (r Resource[T]) Create(ctx context.Context, fields Fields) (*T, error) {
	var out T
	if err := r.c.Post(ctx, r.path, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the record with id and returns the result.
func (r Resource[T]) Update(ctx context.Context, id int, fields Fields) (*T, error) {
	var out T
	if err := r.c.Put(ctx, r.item(id), fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the record with id.
func (r Resource[T]) Delete(ctx context.Context, id int) error {
	return r.c.Delete(ctx, r.item(id))
}

func (r Resource[T]) item(id int) string {
	return r.path + "/" + strconv.Itoa(id)
}

// API is the primary backend.
type API struct {
	c *client.Client

	Customers     Resource[Customer]
	Engineers     Resource[Engineer]
	Incidents     Resource[Incident]
	Opportunities Resource[Opportunity]
	Pages         Resource[Page]
	Users         Resource[User]
	Departments   Resource[Department]
}

// New wraps c.
func New(c *client.Client) *API {
	return &API{
		c:             c,
		Customers:     NewResource[Customer](c, "/customers"),
		Engineers:     NewResource[Engineer](c, "/engineers"),
		Incidents:     NewResource[Incident](c, "/incidents"),
		Opportunities: NewResource[Opportunity](c, "/opportunities"),
		Pages:         NewResource[Page](c, "/pages"),
		Users:         NewResource[User](c, "/users"),
		Departments:   NewResource[Department](c, "/departments"),
	}
}

// Login exchanges credentials for a bearer token and stores it in the
// client's credentials, replacing any previous token.
func (a *API) Login(ctx context.Context, email, password string) error {
	form := url.Values{
		"username": {email},
		"password": {password},
	}

	var tok oauth2.Token
	if err := a.c.Post(ctx, "/login", nil, &tok, client.WithForm(form)); err != nil {
		return err
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("login response did not include an access token")
	}

	creds := a.c.Credentials()
	if creds == nil {
		return fmt.Errorf("client has no credentials to store the token in")
	}
	return creds.Set(&tok)
}

// Logout forgets the stored token. There is no server-side logout.
func (a *API) Logout() error {
	creds := a.c.Credentials()
	if creds == nil {
		return nil
	}
	return creds.Clear()
}

// Me returns the logged-in user.
func (a *API) Me(ctx context.Context) (*User, error) {
	var u User
	if err := a.c.Get(ctx, "/users/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Paging is server-side offset/limit paging.
type Paging struct {
	Skip  int
	Limit int
}

func (p Paging) values() url.Values {
	q := url.Values{}
	if p.Skip > 0 {
		q.Set("skip", strconv.Itoa(p.Skip))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

// ListPages returns one server-side page of wiki pages.
func (a *API) ListPages(ctx context.Context, p Paging) ([]Page, error) {
	return a.Pages.List(ctx, p.values())
}

// SearchPages returns pages matching keyword.
func (a *API) SearchPages(ctx context.Context, keyword string) ([]Page, error) {
	var out []Page
	q := url.Values{"q": {keyword}}
	if err := a.c.Get(ctx, "/pages/search", &out, client.WithQuery(q)); err != nil {
		return nil, err
	}
	return out, nil
}

// AttachFile uploads a file to a page.
func (a *API) AttachFile(ctx context.Context, pageID int, filename string, r io.Reader) (*Attachment, error) {
	var out Attachment
	path := fmt.Sprintf("/pages/%d/attachments", pageID)
	err := a.c.Post(ctx, path, nil, &out,
		client.WithMultipart(nil, client.File{Field: "file", Name: filename, Reader: r}))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListActivityLogs returns audited actions, newest first. Admin only.
func (a *API) ListActivityLogs(ctx context.Context, p Paging) ([]ActivityLog, error) {
	var out []ActivityLog
	if err := a.c.Get(ctx, "/activity-logs", &out, client.WithQuery(p.values())); err != nil {
		return nil, err
	}
	return out, nil
}

// ListLoginHistory returns login attempts, newest first. Admin only.
func (a *API) ListLoginHistory(ctx context.Context, p Paging) ([]LoginRecord, error) {
	var out []LoginRecord
	if err := a.c.Get(ctx, "/login-history", &out, client.WithQuery(p.values())); err != nil {
		return nil, err
	}
	return out, nil
}

// CustomerIncidents returns incidents filed for a customer.
func (a *API) CustomerIncidents(ctx context.Context, customerID int) ([]Incident, error) {
	return a.Incidents.List(ctx, url.Values{"customer_id": {strconv.Itoa(customerID)}})
}

// CustomerOpportunities returns opportunities for a customer.
func (a *API) CustomerOpportunities(ctx context.Context, customerID int) ([]Opportunity, error) {
	return a.Opportunities.List(ctx, url.Values{"customer_id": {strconv.Itoa(customerID)}})
}
