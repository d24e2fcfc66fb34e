package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/raphaelgruber/wikidesk/internal/ai"
	"github.com/raphaelgruber/wikidesk/internal/view"
	"github.com/raphaelgruber/wikidesk/internal/wiki"
	"github.com/spf13/cobra"
)

func customersCmd() *cobra.Command {
	return newResourceCmd(resourceSpec[wiki.Customer]{
		name:     "customers",
		singular: "customer",
		short:    "Manage customers",
		example: `  wikidesk customers list --filter fintech
  wikidesk customers show 12
  wikidesk customers create --set name="Acme Corp" --set industry=Retail`,
		resource: func() wiki.Resource[wiki.Customer] { return wikiAPI.Customers },
		headers:  []string{"ID", "NAME", "INDUSTRY", "CONTACT", "EMAIL"},
		row: func(c wiki.Customer) []string {
			return []string{strconv.Itoa(c.ID), c.Name, c.Industry, c.ContactName, c.ContactEmail}
		},
		text: func(c wiki.Customer) []string {
			return []string{c.Name, c.Industry, c.ContactName, c.ContactEmail}
		},
		sortKeys: map[string]func(wiki.Customer) string{
			"name":     func(c wiki.Customer) string { return c.Name },
			"industry": func(c wiki.Customer) string { return c.Industry },
		},
		describe: describeCustomer,
	})
}

// describeCustomer shows a customer with its incidents and opportunities,
// fetched together.
func describeCustomer(ctx context.Context, c *wiki.Customer) error {
	var (
		incidents     []wiki.Incident
		opportunities []wiki.Opportunity
	)
	err := view.Batch(ctx,
		view.Into(&incidents, func(ctx context.Context) ([]wiki.Incident, error) {
			return wikiAPI.CustomerIncidents(ctx, c.ID)
		}),
		view.Into(&opportunities, func(ctx context.Context) ([]wiki.Opportunity, error) {
			return wikiAPI.CustomerOpportunities(ctx, c.ID)
		}),
	)

	fmt.Println(defaultTheme.accentStyle().Render(fmt.Sprintf("#%d %s", c.ID, c.Name)))
	printFields(
		"Industry", c.Industry,
		"Contact", c.ContactName,
		"Email", c.ContactEmail,
		"Phone", c.Phone,
		"Created", formatTime(c.CreatedAt),
	)
	if c.Notes != "" {
		fmt.Println()
		fmt.Println(renderMarkdown(c.Notes, 80))
	}
	if err != nil {
		return fail(err, "Could not load related records.")
	}

	fmt.Println()
	fmt.Println(defaultTheme.accentStyle().Render("Incidents"))
	if err := printList(incidents, "  none", incidentHeaders, incidentRow); err != nil {
		return err
	}
	fmt.Println(defaultTheme.accentStyle().Render("Opportunities"))
	return printList(opportunities, "  none", opportunityHeaders, opportunityRow)
}

func engineersCmd() *cobra.Command {
	cmd := newResourceCmd(resourceSpec[wiki.Engineer]{
		name:     "engineers",
		singular: "engineer",
		short:    "Manage engineers and their staffing",
		example: `  wikidesk engineers list --filter go
  wikidesk engineers update 4 --set status=available --set current_customer_id=null`,
		resource: func() wiki.Resource[wiki.Engineer] { return wikiAPI.Engineers },
		headers:  []string{"ID", "NAME", "STATUS", "CUSTOMER", "SKILLS"},
		row: func(e wiki.Engineer) []string {
			return []string{
				strconv.Itoa(e.ID),
				e.Name,
				e.Status,
				wiki.DisplayName(e.CurrentCustomer, "-"),
				truncate(strings.Join(e.Skills, ", "), 40),
			}
		},
		text: func(e wiki.Engineer) []string {
			return append([]string{e.Name, e.Email, e.Status}, e.Skills...)
		},
		sortKeys: map[string]func(wiki.Engineer) string{
			"name":   func(e wiki.Engineer) string { return e.Name },
			"status": func(e wiki.Engineer) string { return e.Status },
		},
		describe: func(_ context.Context, e *wiki.Engineer) error {
			fmt.Println(defaultTheme.accentStyle().Render(fmt.Sprintf("#%d %s", e.ID, e.Name)))
			printFields(
				"Email", e.Email,
				"Status", e.Status,
				"Customer", wiki.DisplayName(e.CurrentCustomer, ""),
				"Available", wiki.DisplayName(e.AvailableFrom, ""),
				"Skills", strings.Join(e.Skills, ", "),
			)
			return nil
		},
	})
	return cmd
}

var incidentHeaders = []string{"ID", "TITLE", "SEVERITY", "STATUS", "ASSIGNEE", "UPDATED"}

func incidentRow(i wiki.Incident) []string {
	return []string{
		strconv.Itoa(i.ID),
		truncate(i.Title, 40),
		i.Severity,
		i.Status,
		wiki.DisplayName(i.Assignee, "-"),
		formatTime(i.UpdatedAt),
	}
}

func incidentsCmd() *cobra.Command {
	return newResourceCmd(resourceSpec[wiki.Incident]{
		name:     "incidents",
		singular: "incident",
		short:    "Manage support incidents",
		example: `  wikidesk incidents list --sort severity
  wikidesk incidents update 31 --set status=resolved`,
		resource: func() wiki.Resource[wiki.Incident] { return wikiAPI.Incidents },
		headers:  incidentHeaders,
		row:      incidentRow,
		text: func(i wiki.Incident) []string {
			return []string{i.Title, i.Description, i.Severity, i.Status, wiki.DisplayName(i.Assignee, "")}
		},
		sortKeys: map[string]func(wiki.Incident) string{
			"title":    func(i wiki.Incident) string { return i.Title },
			"severity": func(i wiki.Incident) string { return i.Severity },
			"status":   func(i wiki.Incident) string { return i.Status },
			"updated":  func(i wiki.Incident) string { return i.UpdatedAt.UTC().Format("2006-01-02T15:04:05") },
		},
		describe: func(_ context.Context, i *wiki.Incident) error {
			fmt.Println(defaultTheme.accentStyle().Render(fmt.Sprintf("#%d %s", i.ID, i.Title)))
			printFields(
				"Severity", i.Severity,
				"Status", i.Status,
				"Customer", formatOptInt(i.CustomerID),
				"Assignee", wiki.DisplayName(i.Assignee, "unassigned"),
				"Created", formatTime(i.CreatedAt),
				"Updated", formatTime(i.UpdatedAt),
			)
			if i.Description != "" {
				fmt.Println()
				fmt.Println(renderMarkdown(i.Description, 80))
			}
			return nil
		},
	})
}

var opportunityHeaders = []string{"ID", "TITLE", "STATUS", "CUSTOMER", "START"}

func opportunityRow(o wiki.Opportunity) []string {
	return []string{
		strconv.Itoa(o.ID),
		truncate(o.Title, 40),
		o.Status,
		wiki.DisplayName(o.Customer, "-"),
		wiki.DisplayName(o.StartDate, "-"),
	}
}

func opportunitiesCmd() *cobra.Command {
	cmd := newResourceCmd(resourceSpec[wiki.Opportunity]{
		name:     "opportunities",
		singular: "opportunity",
		short:    "Manage opportunities and find engineers for them",
		example: `  wikidesk opportunities list --filter open
  wikidesk opportunities match 7`,
		resource: func() wiki.Resource[wiki.Opportunity] { return wikiAPI.Opportunities },
		headers:  opportunityHeaders,
		row:      opportunityRow,
		text: func(o wiki.Opportunity) []string {
			return append([]string{o.Title, o.Status, wiki.DisplayName(o.Customer, "")}, o.RequiredSkills...)
		},
		sortKeys: map[string]func(wiki.Opportunity) string{
			"title":  func(o wiki.Opportunity) string { return o.Title },
			"status": func(o wiki.Opportunity) string { return o.Status },
			"start":  func(o wiki.Opportunity) string { return wiki.DisplayName(o.StartDate, "") },
		},
		describe: func(_ context.Context, o *wiki.Opportunity) error {
			fmt.Println(defaultTheme.accentStyle().Render(fmt.Sprintf("#%d %s", o.ID, o.Title)))
			printFields(
				"Status", o.Status,
				"Customer", wiki.DisplayName(o.Customer, ""),
				"Start", wiki.DisplayName(o.StartDate, ""),
				"Skills", strings.Join(o.RequiredSkills, ", "),
			)
			if o.Description != "" {
				fmt.Println()
				fmt.Println(renderMarkdown(o.Description, 80))
			}
			return nil
		},
	})
	cmd.AddCommand(matchCmd())
	return cmd
}

func matchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "match <opportunity-id>",
		Short: "Rank engineers for an opportunity using the AI backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			matches, err := aiAPI.MatchOpportunity(cmd.Context(), id)
			if err != nil {
				return fail(err, fmt.Sprintf("Could not match engineers for opportunity %d.", id))
			}
			if limit > 0 && len(matches) > limit {
				matches = matches[:limit]
			}
			return printList(matches, "No matching engineers.",
				[]string{"ENGINEER", "NAME", "SCORE", "STATUS", "MATCHED SKILLS"},
				func(m ai.EngineerMatch) []string {
					return []string{
						strconv.Itoa(m.EngineerID),
						m.Name,
						fmt.Sprintf("%.2f", m.Score),
						m.Status,
						truncate(strings.Join(m.Skills, ", "), 40),
					}
				})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of candidates to show (0 for all)")
	return cmd
}

func usersCmd() *cobra.Command {
	return newResourceCmd(resourceSpec[wiki.User]{
		name:     "users",
		singular: "user",
		short:    "Manage user accounts (admin)",
		resource: func() wiki.Resource[wiki.User] { return wikiAPI.Users },
		headers:  []string{"ID", "EMAIL", "NAME", "ROLE", "ACTIVE"},
		row: func(u wiki.User) []string {
			return []string{strconv.Itoa(u.ID), u.Email, u.Name, u.Role, strconv.FormatBool(u.IsActive)}
		},
		text: func(u wiki.User) []string {
			return []string{u.Email, u.Name, u.Role}
		},
		sortKeys: map[string]func(wiki.User) string{
			"email": func(u wiki.User) string { return u.Email },
			"name":  func(u wiki.User) string { return u.Name },
			"role":  func(u wiki.User) string { return u.Role },
		},
		describe: func(_ context.Context, u *wiki.User) error {
			describeUser(u)
			return nil
		},
	})
}

func describeUser(u *wiki.User) {
	fmt.Println(defaultTheme.accentStyle().Render(fmt.Sprintf("#%d %s", u.ID, u.Email)))
	printFields(
		"Name", u.Name,
		"Role", u.Role,
		"Department", formatOptInt(u.DepartmentID),
		"Active", strconv.FormatBool(u.IsActive),
	)
}

func departmentsCmd() *cobra.Command {
	return newResourceCmd(resourceSpec[wiki.Department]{
		name:     "departments",
		singular: "department",
		short:    "Manage departments (admin)",
		resource: func() wiki.Resource[wiki.Department] { return wikiAPI.Departments },
		headers:  []string{"ID", "NAME", "DESCRIPTION"},
		row: func(d wiki.Department) []string {
			return []string{strconv.Itoa(d.ID), d.Name, truncate(d.Description, 60)}
		},
		text: func(d wiki.Department) []string {
			return []string{d.Name, d.Description}
		},
		sortKeys: map[string]func(wiki.Department) string{
			"name": func(d wiki.Department) string { return d.Name },
		},
		describe: func(_ context.Context, d *wiki.Department) error {
			fmt.Println(defaultTheme.accentStyle().Render(fmt.Sprintf("#%d %s", d.ID, d.Name)))
			printFields("Description", d.Description)
			return nil
		},
	})
}
